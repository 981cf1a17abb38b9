package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

func newAchievementServiceForTest(store *memoryAchievementStore, audit *auditStub, opts ...AchievementServiceOption) *AchievementService {
	opts = append([]AchievementServiceOption{WithAchievementClock(func() time.Time { return fixedNow })}, opts...)
	return NewAchievementService(store, audit, zap.NewNop(), opts...)
}

func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestAchievementServiceCreate(t *testing.T) {
	store := newMemoryAchievementStore()
	audit := &auditStub{}
	svc := newAchievementServiceForTest(store, audit)

	a, err := svc.Create(context.Background(), userProfile, models.AchievementInput{
		StudentID:   "STU1",
		Title:       "Paper",
		Description: "Workshop paper on robotics",
		Category:    models.CategoryResearchPaper,
		Date:        fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, "stu-p", a.StudentPrincipal)
	assert.Equal(t, []string{models.AuditActionAchievementCreate}, audit.actions())

	stored, err := store.GetByID(context.Background(), a.AchievementID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, stored.Title)
}

func TestAchievementServiceCreateRejectsNonStudents(t *testing.T) {
	store := newMemoryAchievementStore()
	svc := newAchievementServiceForTest(store, &auditStub{})

	for _, actor := range []models.Profile{adminProfile, guestProfile} {
		_, err := svc.Create(context.Background(), actor, models.AchievementInput{StudentID: "STU1", Category: models.CategoryProject})
		appErr := requireAppError(t, err, appErrors.ErrForbidden.Code)
		assert.Equal(t, http.StatusForbidden, appErr.Status)
		assert.Equal(t, policy.CapabilityStudent, appErr.Details["requiredCapability"])
	}
	assert.Empty(t, store.calls)
}

func TestAchievementServiceCreateDuplicate(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("dup"))
	svc := newAchievementServiceForTest(store, &auditStub{})

	_, err := svc.Create(context.Background(), userProfile, models.AchievementInput{
		AchievementID: "dup",
		StudentID:     "STU1",
		Title:         "Line follower",
		Description:   "Autonomous line follower robot",
		Category:      models.CategoryProject,
	})
	requireAppError(t, err, appErrors.ErrConflict.Code)
}

func TestAchievementServiceCreateRejectsBlankTitle(t *testing.T) {
	store := newMemoryAchievementStore()
	svc := newAchievementServiceForTest(store, &auditStub{})

	_, err := svc.Create(context.Background(), userProfile, models.AchievementInput{
		StudentID:   "STU1",
		Title:       "     ",
		Description: "Autonomous line follower robot",
		Category:    models.CategoryProject,
	})
	appErr := requireAppError(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "title", appErr.Details["field"])
	assert.Empty(t, store.calls)
}

func TestAchievementServiceReviewVerify(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("ach-1"))
	audit := &auditStub{}
	metrics := NewMetricsService()
	svc := newAchievementServiceForTest(store, audit, WithAchievementMetrics(metrics))

	a, err := svc.Review(context.Background(), adminProfile, "ach-1", models.StatusVerified, " looks right ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, a.Status)
	require.Equal(t, 1, a.VerificationHistory.Len())
	latest, _ := a.VerificationHistory.Latest()
	assert.Equal(t, "looks right", *latest.Notes)
	assert.Equal(t, fixedNow, latest.Timestamp)

	stored, _ := store.GetByID(context.Background(), "ach-1")
	assert.Equal(t, models.StatusVerified, stored.Status)
	assert.Equal(t, 1, stored.VerificationHistory.Len())
	assert.Equal(t, []string{models.AuditActionAchievementReview}, audit.actions())
}

func TestAchievementServiceReviewForbiddenLeavesRecordUntouched(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("ach-1"))
	audit := &auditStub{}
	svc := newAchievementServiceForTest(store, audit)

	_, err := svc.Review(context.Background(), userProfile, "ach-1", models.StatusVerified, "")
	appErr := requireAppError(t, err, appErrors.ErrForbidden.Code)
	assert.Equal(t, policy.CapabilityVerify, appErr.Details["requiredCapability"])

	stored, _ := store.GetByID(context.Background(), "ach-1")
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, 0, stored.VerificationHistory.Len())
	assert.NotContains(t, store.calls, "apply")
	assert.Empty(t, audit.actions())
}

func TestAchievementServiceReviewTerminal(t *testing.T) {
	verified := pendingAchievement("ach-1")
	verified.Status = models.StatusVerified
	store := newMemoryAchievementStore(verified)
	svc := newAchievementServiceForTest(store, &auditStub{})

	_, err := svc.Review(context.Background(), adminProfile, "ach-1", models.StatusRejected, "changed my mind")
	appErr := requireAppError(t, err, appErrors.ErrInvalidTransition.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, models.StatusVerified, appErr.Details["currentStatus"])
	assert.Equal(t, models.StatusRejected, appErr.Details["targetStatus"])
}

func TestAchievementServiceReviewMissing(t *testing.T) {
	svc := newAchievementServiceForTest(newMemoryAchievementStore(), &auditStub{})
	_, err := svc.Review(context.Background(), adminProfile, "nope", models.StatusVerified, "")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

// raceStore simulates another reviewer committing between read and write.
type raceStore struct {
	*memoryAchievementStore
}

func (r raceStore) ApplyTransition(ctx context.Context, id string, expected models.VerificationStatus, event models.VerificationEvent) error {
	winner := pendingAchievement(id)
	winner.Status = models.StatusRejected
	r.set(winner)
	return r.memoryAchievementStore.ApplyTransition(ctx, id, expected, event)
}

func TestAchievementServiceReviewLostRace(t *testing.T) {
	store := raceStore{newMemoryAchievementStore(pendingAchievement("ach-1"))}
	svc := NewAchievementService(store, &auditStub{}, zap.NewNop())

	_, err := svc.Review(context.Background(), adminProfile, "ach-1", models.StatusVerified, "")
	appErr := requireAppError(t, err, appErrors.ErrInvalidTransition.Code)
	assert.Equal(t, models.StatusRejected, appErr.Details["currentStatus"])
}

func TestAchievementServiceReviewStoreFailure(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("ach-1"))
	store.applyErr = errors.New("connection reset")
	svc := newAchievementServiceForTest(store, &auditStub{})

	_, err := svc.Review(context.Background(), adminProfile, "ach-1", models.StatusVerified, "")
	requireAppError(t, err, appErrors.ErrInternal.Code)
}

func TestAchievementServiceUpdate(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("ach-1"))
	audit := &auditStub{}
	svc := newAchievementServiceForTest(store, audit)

	title := "Robotics national finals"
	a, err := svc.Update(context.Background(), userProfile, "ach-1", models.AchievementPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, a.Title)
	assert.Equal(t, []string{models.AuditActionAchievementUpdate}, audit.actions())

	other := models.Profile{Principal: "someone", Role: models.RoleUser, StudentID: strPtr("STU2")}
	_, err = svc.Update(context.Background(), other, "ach-1", models.AchievementPatch{Title: &title})
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Review(context.Background(), adminProfile, "ach-1", models.StatusVerified, "")
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), userProfile, "ach-1", models.AchievementPatch{Title: &title})
	appErr := requireAppError(t, err, appErrors.ErrConflict.Code)
	assert.Equal(t, models.StatusVerified, appErr.Details["currentStatus"])
}

func TestAchievementServiceListPendingRequiresVerifier(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("a"), pendingAchievement("b"))
	svc := newAchievementServiceForTest(store, &auditStub{})

	items, err := svc.ListPending(context.Background(), adminProfile)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = svc.ListPending(context.Background(), userProfile)
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAchievementServiceListVerifiedByCategoryValidates(t *testing.T) {
	svc := newAchievementServiceForTest(newMemoryAchievementStore(), &auditStub{})

	items, err := svc.ListVerifiedByCategory(context.Background(), models.CategoryProject)
	require.NoError(t, err)
	assert.NotNil(t, items)

	_, err = svc.ListVerifiedByCategory(context.Background(), "poems")
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAchievementServiceSummaryCachesAndInvalidates(t *testing.T) {
	store := newMemoryAchievementStore(pendingAchievement("a"))
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := newAchievementServiceForTest(store, &auditStub{}, WithAchievementCache(cache))

	summary, hit, err := svc.Summary(context.Background(), "STU1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, summary.Pending)

	_, hit, err = svc.Summary(context.Background(), "STU1")
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = svc.Review(context.Background(), adminProfile, "a", models.StatusVerified, "")
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.deleted, "summary:STU1")
	assert.Contains(t, cacheRepo.deleted, "assistant:*")

	summary, hit, err = svc.Summary(context.Background(), "STU1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, summary.Verified)
}
