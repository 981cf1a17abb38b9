package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/achievement-registry-api/internal/middleware"
	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

type achievementServiceMock struct {
	achievement *models.Achievement
	items       []models.Achievement
	summary     *models.AchievementSummary
	summaryHit  bool
	err         error

	lastActor  models.Profile
	lastInput  models.AchievementInput
	lastPatch  models.AchievementPatch
	lastTarget models.VerificationStatus
	lastNotes  string
	lastArg    string
	calledWith []string
}

func (m *achievementServiceMock) called(name string) {
	m.calledWith = append(m.calledWith, name)
}

func (m *achievementServiceMock) Create(ctx context.Context, actor models.Profile, input models.AchievementInput) (*models.Achievement, error) {
	m.called("create")
	m.lastActor, m.lastInput = actor, input
	return m.achievement, m.err
}

func (m *achievementServiceMock) Get(ctx context.Context, id string) (*models.Achievement, error) {
	m.called("get")
	m.lastArg = id
	return m.achievement, m.err
}

func (m *achievementServiceMock) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	m.called("list_by_student")
	m.lastArg = studentID
	return m.items, m.err
}

func (m *achievementServiceMock) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	m.called("list_verified")
	m.lastArg = string(category)
	return m.items, m.err
}

func (m *achievementServiceMock) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	m.called("search")
	m.lastArg = term
	return m.items, m.err
}

func (m *achievementServiceMock) ListPending(ctx context.Context, actor models.Profile) ([]models.Achievement, error) {
	m.called("list_pending")
	m.lastActor = actor
	return m.items, m.err
}

func (m *achievementServiceMock) Review(ctx context.Context, actor models.Profile, id string, target models.VerificationStatus, notes string) (*models.Achievement, error) {
	m.called("review")
	m.lastActor, m.lastArg, m.lastTarget, m.lastNotes = actor, id, target, notes
	return m.achievement, m.err
}

func (m *achievementServiceMock) Update(ctx context.Context, actor models.Profile, id string, patch models.AchievementPatch) (*models.Achievement, error) {
	m.called("update")
	m.lastActor, m.lastArg, m.lastPatch = actor, id, patch
	return m.achievement, m.err
}

func (m *achievementServiceMock) Summary(ctx context.Context, studentID string) (*models.AchievementSummary, bool, error) {
	m.called("summary")
	m.lastArg = studentID
	return m.summary, m.summaryHit, m.err
}

type exporterMock struct {
	file        *service.ExportFile
	err         error
	lastStudent string
	lastFormat  service.ExportFormat
}

func (m *exporterMock) Portfolio(ctx context.Context, actor models.Profile, studentID string, format service.ExportFormat) (*service.ExportFile, error) {
	m.lastStudent, m.lastFormat = studentID, format
	return m.file, m.err
}

type profileServiceMock struct {
	profiles map[string]*models.Profile
	created  bool
	saveErr  error
	lastSave models.ProfileInput
	lastList models.ProfileFilter
}

func (m *profileServiceMock) GetCaller(ctx context.Context, principal string) (*models.Profile, error) {
	if p, ok := m.profiles[principal]; ok {
		return p, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
}

func (m *profileServiceMock) SaveCaller(ctx context.Context, principal string, input models.ProfileInput) (*models.Profile, bool, error) {
	m.lastSave = input
	if m.saveErr != nil {
		return nil, false, m.saveErr
	}
	return &models.Profile{Principal: principal, Role: models.RoleUser, StudentID: input.StudentID, Name: input.Name}, m.created, nil
}

func (m *profileServiceMock) Get(ctx context.Context, actor models.Profile, principal string) (*models.Profile, error) {
	if actor.Principal != principal && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	return m.GetCaller(ctx, principal)
}

func (m *profileServiceMock) List(ctx context.Context, actor models.Profile, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	m.lastList = filter
	return []models.Profile{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *profileServiceMock) Role(actor models.Profile) models.RoleInfo {
	return models.RoleInfo{Principal: actor.Principal, Role: actor.Role, IsAdmin: actor.Role == models.RoleAdmin}
}

type assistantServiceMock struct {
	result     *service.AssistantResult
	hit        bool
	lastPrompt string
}

func (m *assistantServiceMock) Query(ctx context.Context, prompt string) (*service.AssistantResult, bool, error) {
	m.lastPrompt = prompt
	return m.result, m.hit, nil
}

func strPtr(s string) *string { return &s }

var (
	studentActor = &models.Profile{Principal: "stu-p", Role: models.RoleUser, StudentID: strPtr("STU1")}
	adminActor   = &models.Profile{Principal: "admin-1", Role: models.RoleAdmin}
)

// newTestContext builds a gin context acting as profile (nil for anonymous).
func newTestContext(method, target string, body *string, profile *models.Profile) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(*body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	if profile != nil {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{Principal: profile.Principal})
		c.Set(middleware.ContextProfileKey, profile)
	}
	return c, w
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}
