package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/repository"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

type memoryAchievementStore struct {
	mu       sync.Mutex
	records  map[string]models.Achievement
	order    []string
	calls    []string
	applyErr error
}

func newMemoryAchievementStore(items ...models.Achievement) *memoryAchievementStore {
	s := &memoryAchievementStore{records: make(map[string]models.Achievement)}
	for _, a := range items {
		s.records[a.AchievementID] = a
		s.order = append(s.order, a.AchievementID)
	}
	return s
}

func (s *memoryAchievementStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *memoryAchievementStore) Create(ctx context.Context, a *models.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create")
	if _, ok := s.records[a.AchievementID]; ok {
		return repository.ErrDuplicate
	}
	s.records[a.AchievementID] = *a
	s.order = append(s.order, a.AchievementID)
	return nil
}

func (s *memoryAchievementStore) GetByID(ctx context.Context, id string) (*models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("get")
	a, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s *memoryAchievementStore) filter(keep func(models.Achievement) bool) []models.Achievement {
	var out []models.Achievement
	for _, id := range s.order {
		if a := s.records[id]; keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *memoryAchievementStore) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("list_by_student")
	return s.filter(func(a models.Achievement) bool { return a.StudentID == studentID }), nil
}

func (s *memoryAchievementStore) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("list_verified")
	return s.filter(func(a models.Achievement) bool {
		return a.Status == models.StatusVerified && a.Category == category
	}), nil
}

func (s *memoryAchievementStore) ListPending(ctx context.Context) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("list_pending")
	return s.filter(func(a models.Achievement) bool { return a.Status == models.StatusPending }), nil
}

func (s *memoryAchievementStore) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("search")
	term = strings.ToLower(term)
	return s.filter(func(a models.Achievement) bool {
		return strings.Contains(strings.ToLower(a.Title), term) || strings.Contains(strings.ToLower(a.Description), term)
	}), nil
}

func (s *memoryAchievementStore) ApplyTransition(ctx context.Context, id string, expected models.VerificationStatus, event models.VerificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("apply")
	if s.applyErr != nil {
		return s.applyErr
	}
	a, ok := s.records[id]
	if !ok || a.Status != expected {
		return sql.ErrNoRows
	}
	a.Status = event.Status
	a.VerificationHistory = a.VerificationHistory.Append(event)
	a.UpdatedAt = event.Timestamp
	s.records[id] = a
	return nil
}

func (s *memoryAchievementStore) Update(ctx context.Context, a *models.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update")
	current, ok := s.records[a.AchievementID]
	if !ok || current.Status != models.StatusPending {
		return sql.ErrNoRows
	}
	s.records[a.AchievementID] = *a
	return nil
}

func (s *memoryAchievementStore) Summary(ctx context.Context, studentID string) (*models.AchievementSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("summary")
	summary := &models.AchievementSummary{StudentID: studentID}
	for _, a := range s.records {
		if a.StudentID != studentID {
			continue
		}
		summary.Total++
		switch a.Status {
		case models.StatusPending:
			summary.Pending++
		case models.StatusVerified:
			summary.Verified++
		case models.StatusRejected:
			summary.Rejected++
		}
	}
	return summary, nil
}

func (s *memoryAchievementStore) set(a models.Achievement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.AchievementID] = a
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

// memoryCache is an in-process CacheRepository that keeps JSON-free values.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]interface{})}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *[]models.Achievement:
		*d = v.([]models.Achievement)
	case *models.AchievementSummary:
		*d = *v.(*models.AchievementSummary)
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.entries {
		if (strings.HasSuffix(pattern, "*") && strings.HasPrefix(k, prefix)) || k == pattern {
			delete(m.entries, k)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

var (
	fixedNow     = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)
	adminProfile = models.Profile{Principal: "admin-1", Role: models.RoleAdmin}
	userProfile  = models.Profile{Principal: "stu-p", Role: models.RoleUser, StudentID: strPtr("STU1")}
	guestProfile = models.Profile{Principal: "guest-p", Role: models.RoleGuest}
)

func pendingAchievement(id string) models.Achievement {
	return models.Achievement{
		AchievementID:    id,
		StudentID:        "STU1",
		StudentPrincipal: "stu-p",
		Title:            "Robotics finals",
		Description:      "Regional robotics league",
		Category:         models.CategoryHackathon,
		Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:           models.StatusPending,
	}
}
