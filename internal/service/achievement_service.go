package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	"github.com/noah-isme/achievement-registry-api/internal/repository"
	"github.com/noah-isme/achievement-registry-api/internal/verification"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

// AchievementStore is implemented by the Postgres and Mongo repositories.
type AchievementStore interface {
	Create(ctx context.Context, a *models.Achievement) error
	GetByID(ctx context.Context, id string) (*models.Achievement, error)
	ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error)
	ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error)
	ListPending(ctx context.Context) ([]models.Achievement, error)
	Search(ctx context.Context, term string) ([]models.Achievement, error)
	ApplyTransition(ctx context.Context, id string, expected models.VerificationStatus, event models.VerificationEvent) error
	Update(ctx context.Context, a *models.Achievement) error
	Summary(ctx context.Context, studentID string) (*models.AchievementSummary, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AchievementService owns the achievement lifecycle: creation, edits, reviews
// and the read paths used by dashboards and the assistant.
type AchievementService struct {
	store   AchievementStore
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// AchievementServiceOption configures the service.
type AchievementServiceOption func(*AchievementService)

// WithAchievementCache enables cache invalidation and summary caching.
func WithAchievementCache(cache *CacheService) AchievementServiceOption {
	return func(s *AchievementService) {
		s.cache = cache
	}
}

// WithAchievementMetrics records transition counters.
func WithAchievementMetrics(metrics *MetricsService) AchievementServiceOption {
	return func(s *AchievementService) {
		s.metrics = metrics
	}
}

// WithAchievementClock overrides the time source.
func WithAchievementClock(now func() time.Time) AchievementServiceOption {
	return func(s *AchievementService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAchievementService constructs the service with defaults.
func NewAchievementService(store AchievementStore, audit auditLogger, logger *zap.Logger, opts ...AchievementServiceOption) *AchievementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AchievementService{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create registers a new pending achievement for the calling student.
func (s *AchievementService) Create(ctx context.Context, actor models.Profile, input models.AchievementInput) (*models.Achievement, error) {
	achievement, err := verification.NewAchievement(actor, input, s.now())
	if err != nil {
		return nil, mapVerificationError(err)
	}
	if err := s.store.Create(ctx, achievement); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "achievement id already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create achievement")
	}
	s.emitAudit(ctx, actor.Principal, models.AuditActionAchievementCreate, achievement.AchievementID, nil, achievement)
	s.invalidate(ctx, achievement.StudentID)
	return achievement, nil
}

// Get returns one achievement.
func (s *AchievementService) Get(ctx context.Context, id string) (*models.Achievement, error) {
	achievement, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievement")
	}
	return achievement, nil
}

// ListByStudentID returns all achievements for a student id.
func (s *AchievementService) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	items, err := s.timed(ctx, "list_by_student", func(ctx context.Context) ([]models.Achievement, error) {
		return s.store.ListByStudentID(ctx, studentID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}
	return items, nil
}

// ListVerifiedByCategory returns verified achievements of one category.
func (s *AchievementService) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	if !category.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "unknown category", map[string]interface{}{"category": category})
	}
	items, err := s.timed(ctx, "list_verified_by_category", func(ctx context.Context) ([]models.Achievement, error) {
		return s.store.ListVerifiedByCategory(ctx, category)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}
	return items, nil
}

// Search runs a free-text lookup over title and description.
func (s *AchievementService) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	items, err := s.timed(ctx, "search", func(ctx context.Context) ([]models.Achievement, error) {
		return s.store.Search(ctx, term)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search achievements")
	}
	return items, nil
}

// ListPending returns the review queue. Only verifiers may read it.
func (s *AchievementService) ListPending(ctx context.Context, actor models.Profile) ([]models.Achievement, error) {
	if !policy.CanVerify(actor) {
		return nil, mapVerificationError(&verification.PermissionError{Capability: policy.CapabilityVerify, Role: actor.Role})
	}
	items, err := s.timed(ctx, "list_pending", s.store.ListPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending achievements")
	}
	return items, nil
}

// Review moves a pending achievement to verified or rejected. The write is a
// compare-and-swap on the status observed at read time; losing a race yields
// an invalid transition against the status now stored.
func (s *AchievementService) Review(ctx context.Context, actor models.Profile, id string, target models.VerificationStatus, notes string) (*models.Achievement, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	outcome, err := verification.Transition(*current, actor, target, notes, s.now())
	if err != nil {
		s.metrics.RecordTransition(string(target), transitionResult(err))
		return nil, mapVerificationError(err)
	}

	if err := s.store.ApplyTransition(ctx, id, outcome.From, outcome.Event); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
		}
		latest, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		s.metrics.RecordTransition(string(target), "conflict")
		s.logger.Info("review lost race",
			zap.String("achievement_id", id),
			zap.String("observed_status", string(latest.Status)),
			zap.String("target_status", string(target)))
		return nil, mapVerificationError(&verification.TransitionError{AchievementID: id, Current: latest.Status, Target: target})
	}

	s.metrics.RecordTransition(string(target), "ok")
	s.emitAudit(ctx, actor.Principal, models.AuditActionAchievementReview, id,
		map[string]interface{}{"status": outcome.From},
		map[string]interface{}{"status": outcome.Event.Status, "notes": outcome.Event.Notes})
	s.invalidate(ctx, current.StudentID)
	return &outcome.Achievement, nil
}

// Update edits the descriptive fields of a pending achievement.
func (s *AchievementService) Update(ctx context.Context, actor models.Profile, id string, patch models.AchievementPatch) (*models.Achievement, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := verification.Edit(*current, actor, patch, s.now())
	if err != nil {
		return nil, mapVerificationError(err)
	}
	if err := s.store.Update(ctx, next); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update achievement")
		}
		latest, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, mapVerificationError(&verification.LockedError{AchievementID: id, Current: latest.Status})
	}
	s.emitAudit(ctx, actor.Principal, models.AuditActionAchievementUpdate, id, current, next)
	s.invalidate(ctx, next.StudentID)
	return next, nil
}

// Summary returns status counts for a student. The boolean reports a cache hit.
func (s *AchievementService) Summary(ctx context.Context, studentID string) (*models.AchievementSummary, bool, error) {
	cacheKey := summaryCachePrefix + studentID
	var cached models.AchievementSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("summary cache read", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.store.Summary(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise achievements")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, 0); err != nil {
			s.logger.Warn("summary cache write", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *AchievementService) timed(ctx context.Context, label string, fn func(context.Context) ([]models.Achievement, error)) ([]models.Achievement, error) {
	start := time.Now()
	items, err := fn(ctx)
	s.metrics.ObserveDBQuery(label, time.Since(start))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Achievement{}
	}
	return items, nil
}

func (s *AchievementService) invalidate(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStudent(ctx, studentID); err != nil {
		s.logger.Warn("invalidate caches", zap.String("studentId", studentID), zap.Error(err))
	}
}

func (s *AchievementService) emitAudit(ctx context.Context, principal, action, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "achievement",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "achievement-service",
	}
	if principal != "" {
		entry.Principal = &principal
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

func transitionResult(err error) string {
	var permErr *verification.PermissionError
	if errors.As(err, &permErr) {
		return "forbidden"
	}
	return "invalid"
}

// mapVerificationError converts lifecycle errors into API errors carrying the
// state a client needs to explain the failure.
func mapVerificationError(err error) error {
	var (
		permErr  *verification.PermissionError
		trErr    *verification.TransitionError
		lockErr  *verification.LockedError
		inputErr *verification.InputError
	)
	switch {
	case errors.As(err, &permErr):
		return appErrors.WithDetails(appErrors.ErrForbidden, permErr.Error(), map[string]interface{}{
			"requiredCapability": permErr.Capability,
			"role":               permErr.Role,
		})
	case errors.As(err, &trErr):
		return appErrors.WithDetails(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move achievement from %s to %s", trErr.Current, trErr.Target),
			map[string]interface{}{
				"achievementId": trErr.AchievementID,
				"currentStatus": trErr.Current,
				"targetStatus":  trErr.Target,
			})
	case errors.As(err, &lockErr):
		return appErrors.WithDetails(appErrors.ErrConflict, lockErr.Error(), map[string]interface{}{
			"achievementId": lockErr.AchievementID,
			"currentStatus": lockErr.Current,
		})
	case errors.As(err, &inputErr):
		return appErrors.WithDetails(appErrors.ErrValidation, inputErr.Error(), map[string]interface{}{
			"field": inputErr.Field,
		})
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
}
