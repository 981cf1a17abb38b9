package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

const profileColumns = `principal, role, student_id, name, email, bio, created_at, updated_at`

// ProfileRepository provides database access for caller profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByPrincipal returns the profile for a principal.
func (r *ProfileRepository) FindByPrincipal(ctx context.Context, principal string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE principal = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, principal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by principal: %w", err)
	}
	return &profile, nil
}

// profileStudentIDConstraint is the unique index on profiles.student_id.
const profileStudentIDConstraint = "profiles_student_id_key"

// ErrStudentIDTaken is returned when another profile already holds the student
// id. It matches ErrDuplicate under errors.Is.
var ErrStudentIDTaken = fmt.Errorf("student id already registered: %w", ErrDuplicate)

// Create inserts a new profile. ErrStudentIDTaken is returned when the student
// id is already registered and ErrDuplicate when the principal is.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (principal, role, student_id, name, email, bio, created_at, updated_at)
	VALUES (:principal, :role, :student_id, :name, :email, :bio, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == profileStudentIDConstraint {
				return ErrStudentIDTaken
			}
			return ErrDuplicate
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateDetails updates the self-editable fields. Role and student id are fixed
// once a profile exists.
func (r *ProfileRepository) UpdateDetails(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET name = :name, email = :email, bio = :bio, updated_at = :updated_at WHERE principal = :principal`
	result, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(result, "profile update")
}

// List returns profiles based on filters with total count.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	baseQuery := `FROM profiles WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(COALESCE(student_id, '')) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(escapeLike(filter.Search))+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", profileColumns, baseQuery, pageSize, offset)

	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	return profiles, total, nil
}
