package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	"github.com/noah-isme/achievement-registry-api/internal/repository"
	"github.com/noah-isme/achievement-registry-api/internal/verification"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

type profileStore interface {
	FindByPrincipal(ctx context.Context, principal string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpdateDetails(ctx context.Context, profile *models.Profile) error
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
}

// ProfileService manages caller profiles and the role each principal holds.
type ProfileService struct {
	repo            profileStore
	audit           auditLogger
	logger          *zap.Logger
	bootstrapAdmins map[string]struct{}
}

// NewProfileService constructs the service. Principals listed in
// bootstrapAdmins receive the admin role when their profile is first saved.
func NewProfileService(repo profileStore, audit auditLogger, logger *zap.Logger, bootstrapAdmins []string) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(bootstrapAdmins))
	for _, p := range bootstrapAdmins {
		if p = strings.TrimSpace(p); p != "" {
			admins[p] = struct{}{}
		}
	}
	return &ProfileService{repo: repo, audit: audit, logger: logger, bootstrapAdmins: admins}
}

// GetCaller returns the profile stored for principal.
func (s *ProfileService) GetCaller(ctx context.Context, principal string) (*models.Profile, error) {
	if strings.TrimSpace(principal) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	profile, err := s.repo.FindByPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// SaveCaller creates the caller's profile or updates its editable fields. The
// boolean reports whether a new profile was created. Role and student id are
// fixed at creation.
func (s *ProfileService) SaveCaller(ctx context.Context, principal string, input models.ProfileInput) (*models.Profile, bool, error) {
	existing, err := s.GetCaller(ctx, principal)
	if err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		return nil, false, err
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, false, appErrors.WithDetails(appErrors.ErrValidation, "name is required", map[string]interface{}{
			"field": "name",
		})
	}

	studentID := trimOptional(input.StudentID)
	if existing != nil {
		if studentID != nil && *studentID != existing.StudentIDValue() {
			return nil, false, appErrors.WithDetails(appErrors.ErrValidation, "student id cannot be changed", map[string]interface{}{
				"field": "studentId",
			})
		}
		before := *existing
		existing.Name = strings.TrimSpace(input.Name)
		existing.Email = strings.TrimSpace(input.Email)
		existing.Bio = trimOptional(input.Bio)
		if err := s.repo.UpdateDetails(ctx, existing); err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
		}
		s.emitAudit(ctx, principal, models.AuditActionProfileUpdate, before, existing)
		return existing, false, nil
	}

	profile := &models.Profile{
		Principal: principal,
		Role:      s.initialRole(principal, studentID),
		StudentID: studentID,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Bio:       trimOptional(input.Bio),
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrStudentIDTaken):
			return nil, false, appErrors.WithDetails(appErrors.ErrConflict, "student id already registered", map[string]interface{}{
				"field": "studentId",
			})
		case errors.Is(err, repository.ErrDuplicate):
			return nil, false, appErrors.Clone(appErrors.ErrConflict, "profile already exists")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	s.logger.Info("profile created", zap.String("principal", principal), zap.String("role", string(profile.Role)))
	s.emitAudit(ctx, principal, models.AuditActionProfileCreate, nil, profile)
	return profile, true, nil
}

// Get returns another principal's profile. Callers may read their own profile;
// admins may read any.
func (s *ProfileService) Get(ctx context.Context, actor models.Profile, principal string) (*models.Profile, error) {
	if actor.Principal != principal && !policy.CanVerify(actor) {
		return nil, mapVerificationError(permissionDenied(actor, "only admins may view other profiles"))
	}
	return s.GetCaller(ctx, principal)
}

// List returns a page of profiles. Admin only.
func (s *ProfileService) List(ctx context.Context, actor models.Profile, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	if !policy.CanVerify(actor) {
		return nil, nil, mapVerificationError(permissionDenied(actor, "only admins may list profiles"))
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Role describes the caller's role.
func (s *ProfileService) Role(actor models.Profile) models.RoleInfo {
	return models.RoleInfo{Principal: actor.Principal, Role: actor.Role, IsAdmin: policy.CanVerify(actor)}
}

func (s *ProfileService) initialRole(principal string, studentID *string) models.UserRole {
	if _, ok := s.bootstrapAdmins[principal]; ok {
		return models.RoleAdmin
	}
	if studentID != nil {
		return models.RoleUser
	}
	return models.RoleGuest
}

func (s *ProfileService) emitAudit(ctx context.Context, principal, action string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Principal:  &principal,
		Action:     action,
		Resource:   "profile",
		ResourceID: &principal,
		IPAddress:  "system",
		UserAgent:  "profile-service",
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func permissionDenied(actor models.Profile, reason string) *verification.PermissionError {
	return &verification.PermissionError{Capability: policy.CapabilityVerify, Role: actor.Role, Reason: reason}
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
