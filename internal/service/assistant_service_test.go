package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/search"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

type failingLookup struct{}

func (failingLookup) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	return nil, errors.New("store down")
}

func (failingLookup) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	return nil, errors.New("store down")
}

func (failingLookup) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	return nil, errors.New("store down")
}

func TestAssistantServiceClarification(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("a"))
	svc := NewAssistantService(store, nil, nil, 0, zap.NewNop())

	res, hit, err := svc.Query(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, AssistantTypeClarification, res.Type)
	assert.Equal(t, search.ClarificationMessage, res.Message)
	assert.NotNil(t, res.Achievements)
	assert.Empty(t, res.Achievements)
	assert.Empty(t, store.calls)
}

func TestAssistantServiceStudentIDQuery(t *testing.T) {
	paper := pendingAchievement("b")
	paper.Category = models.CategoryResearchPaper
	store := newMemoryAchievementStore(pendingAchievement("a"), paper)
	svc := NewAssistantService(store, nil, NewMetricsService(), 0, zap.NewNop())

	res, _, err := svc.Query(context.Background(), "show research papers for stu1")
	require.NoError(t, err)
	assert.Equal(t, AssistantTypeResults, res.Type)
	assert.Equal(t, search.StrategyStudentID, res.Strategy)
	require.NotNil(t, res.Filters)
	assert.Equal(t, "STU1", *res.Filters.StudentID)
	require.Len(t, res.Achievements, 1)
	assert.Equal(t, "b", res.Achievements[0].AchievementID)
	assert.Equal(t, []string{"list_by_student"}, store.calls)
}

func TestAssistantServiceCachesResults(t *testing.T) {
	verified := pendingAchievement("a")
	verified.Status = models.StatusVerified
	store := newMemoryAchievementStore(verified)
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAssistantService(store, cache, nil, time.Minute, zap.NewNop())

	first, hit, err := svc.Query(context.Background(), "hackathon wins")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first.Achievements, 1)

	second, hit, err := svc.Query(context.Background(), "hackathon wins")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Achievements, second.Achievements)
	assert.Equal(t, []string{"list_verified"}, store.calls)

	_, ok := cacheRepo.entries["assistant:cat=hackathon:terms=wins"]
	assert.True(t, ok)
}

func TestAssistantServiceStoreError(t *testing.T) {
	svc := NewAssistantService(failingLookup{}, nil, nil, 0, nil)

	_, _, err := svc.Query(context.Background(), "projects by STU77")
	requireAppError(t, err, appErrors.ErrInternal.Code)
}

func TestAssistantCacheKey(t *testing.T) {
	sid := "STU:1"
	cat := models.CategoryProject
	year := 2024
	key := assistantCacheKey(search.Filters{StudentID: &sid, Category: &cat, Year: &year, TextTerms: []string{"robot", "arm"}})
	assert.Equal(t, "assistant:sid=STU|1:cat=project:year=2024:terms=robot,arm", key)
	assert.Equal(t, "assistant", assistantCacheKey(search.Filters{}))
}
