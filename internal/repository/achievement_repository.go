package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("duplicate record")

const achievementColumns = `achievement_id, student_id, student_principal, title, description, category, achieved_at,
       links, certificate_image, status, verification_history, created_at, updated_at`

// AchievementRepository persists achievements in Postgres.
type AchievementRepository struct {
	db *sqlx.DB
}

// NewAchievementRepository constructs the repository.
func NewAchievementRepository(db *sqlx.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Create inserts a new achievement.
func (r *AchievementRepository) Create(ctx context.Context, a *models.Achievement) error {
	const query = `INSERT INTO achievements
	(achievement_id, student_id, student_principal, title, description, category, achieved_at, links, certificate_image, status, verification_history, created_at, updated_at)
	VALUES (:achievement_id, :student_id, :student_principal, :title, :description, :category, :achieved_at, :links, :certificate_image, :status, :verification_history, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

// GetByID fetches a single achievement. sql.ErrNoRows is returned unwrapped.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE achievement_id = $1`
	var a models.Achievement
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	return &a, nil
}

// ListByStudentID returns every achievement recorded for a student, newest first.
func (r *AchievementRepository) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE student_id = $1 ORDER BY achieved_at DESC, created_at DESC`
	return r.list(ctx, "list achievements by student", query, studentID)
}

// ListVerifiedByCategory returns verified achievements in a category.
func (r *AchievementRepository) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE status = $1 AND category = $2 ORDER BY achieved_at DESC, created_at DESC`
	return r.list(ctx, "list verified achievements", query, models.StatusVerified, category)
}

// ListPending returns the review queue, oldest submission first.
func (r *AchievementRepository) ListPending(ctx context.Context) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE status = $1 ORDER BY created_at ASC`
	return r.list(ctx, "list pending achievements", query, models.StatusPending)
}

// Search matches term case-insensitively against title and description.
func (r *AchievementRepository) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE title ILIKE $1 OR description ILIKE $1 ORDER BY achieved_at DESC, created_at DESC`
	return r.list(ctx, "search achievements", query, "%"+escapeLike(term)+"%")
}

func (r *AchievementRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Achievement, error) {
	var items []models.Achievement
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// ApplyTransition moves an achievement out of expected and appends event to
// its history in one conditional statement. sql.ErrNoRows means the record is
// missing or no longer in the expected status.
func (r *AchievementRepository) ApplyTransition(ctx context.Context, id string, expected models.VerificationStatus, event models.VerificationEvent) error {
	payload, err := json.Marshal([]models.VerificationEvent{event})
	if err != nil {
		return fmt.Errorf("encode verification event: %w", err)
	}
	const query = `UPDATE achievements
	SET status = $1, verification_history = verification_history || $2::jsonb, updated_at = $3
	WHERE achievement_id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, event.Status, string(payload), event.Timestamp, id, expected)
	if err != nil {
		return fmt.Errorf("apply achievement transition: %w", err)
	}
	return requireRow(result, "achievement transition")
}

// Update writes the descriptive fields of a pending achievement.
func (r *AchievementRepository) Update(ctx context.Context, a *models.Achievement) error {
	const query = `UPDATE achievements
	SET title = :title, description = :description, achieved_at = :achieved_at, links = :links,
	    certificate_image = :certificate_image, updated_at = :updated_at
	WHERE achievement_id = :achievement_id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update achievement: %w", err)
	}
	return requireRow(result, "achievement update")
}

// Summary counts a student's achievements by status.
func (r *AchievementRepository) Summary(ctx context.Context, studentID string) (*models.AchievementSummary, error) {
	const query = `SELECT
	    COUNT(*) AS total,
	    COUNT(*) FILTER (WHERE status = 'pending') AS pending,
	    COUNT(*) FILTER (WHERE status = 'verified') AS verified,
	    COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
	FROM achievements WHERE student_id = $1`
	summary := models.AchievementSummary{StudentID: studentID}
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return nil, fmt.Errorf("summarise achievements: %w", err)
	}
	return &summary, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	_, ok := uniqueConstraint(err)
	return ok
}

// uniqueConstraint returns the name of the unique constraint err violated.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return "", false
	}
	return pqErr.Constraint, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
