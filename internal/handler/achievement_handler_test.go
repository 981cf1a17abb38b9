package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

func body(s string) *string { return &s }

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func pending() *models.Achievement {
	return &models.Achievement{
		AchievementID:    "ach-1",
		StudentID:        "STU1",
		StudentPrincipal: "stu-p",
		Title:            "Robotics finals",
		Category:         models.CategoryHackathon,
		Status:           models.StatusPending,
	}
}

func TestAchievementHandlerCreate(t *testing.T) {
	svc := &achievementServiceMock{achievement: pending()}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements", body(`{
		"studentId": "STU1",
		"title": "Robotics finals",
		"description": "Regional robotics league final round",
		"category": "hackathon",
		"date": "2024-03-01",
		"links": ["https://example.com/result"]
	}`), studentActor)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "stu-p", svc.lastActor.Principal)
	assert.Equal(t, models.CategoryHackathon, svc.lastInput.Category)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), svc.lastInput.Date)
	assert.Equal(t, []string{"https://example.com/result"}, svc.lastInput.Links)
}

func TestAchievementHandlerCreateValidation(t *testing.T) {
	svc := &achievementServiceMock{}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements", body(`{
		"studentId": "STU1",
		"title": "ab",
		"description": "short",
		"category": "poem",
		"date": "01/03/2024",
		"links": ["not a url"]
	}`), studentActor)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
	assert.Equal(t, "min", env.Error.Details["title"])
	assert.Equal(t, "oneof", env.Error.Details["category"])
	assert.Equal(t, "datetime", env.Error.Details["date"])
	assert.Equal(t, "url", env.Error.Details["links[0]"])
	assert.Empty(t, svc.calledWith)
}

func TestAchievementHandlerCreateRejectsWhitespaceText(t *testing.T) {
	svc := &achievementServiceMock{}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements", body(`{
		"studentId": "STU1",
		"title": "     ",
		"description": "            ",
		"category": "project",
		"date": "2024-03-01"
	}`), studentActor)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, "notblank", env.Error.Details["title"])
	assert.Equal(t, "notblank", env.Error.Details["description"])
	assert.Empty(t, svc.calledWith)
}

func TestAchievementHandlerUpdateRejectsWhitespaceTitle(t *testing.T) {
	svc := &achievementServiceMock{achievement: pending()}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPatch, "/achievements/ach-1", body(`{"title":"    "}`), studentActor)
	c.Params = append(c.Params, ginParam("id", "ach-1"))
	h.Update(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, "notblank", env.Error.Details["title"])
	assert.Nil(t, svc.lastPatch.Title)
}

func TestAchievementHandlerCreateMalformedJSON(t *testing.T) {
	h := NewAchievementHandler(&achievementServiceMock{}, nil, nil)
	c, w := newTestContext(http.MethodPost, "/achievements", body(`{"studentId":`), studentActor)
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAchievementHandlerGetIncludesPermissions(t *testing.T) {
	svc := &achievementServiceMock{achievement: pending()}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodGet, "/achievements/ach-1", nil, adminActor)
	c.Params = append(c.Params, ginParam("id", "ach-1"))
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w.Body.Bytes())
	perms := env.Meta["permissions"].(map[string]interface{})
	assert.Equal(t, true, perms["canEdit"])
	assert.Equal(t, true, perms["canVerify"])
	assert.Equal(t, "ach-1", svc.lastArg)

	c, w = newTestContext(http.MethodGet, "/achievements/ach-1", nil, nil)
	c.Params = append(c.Params, ginParam("id", "ach-1"))
	h.Get(c)
	env = decode(t, w.Body.Bytes())
	perms = env.Meta["permissions"].(map[string]interface{})
	assert.Equal(t, false, perms["canEdit"])
	assert.Equal(t, false, perms["canVerify"])
}

func TestAchievementHandlerListRequiresFilters(t *testing.T) {
	svc := &achievementServiceMock{items: []models.Achievement{}}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodGet, "/achievements", nil, nil)
	h.ListByStudent(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/achievements?studentId=STU1", nil, nil)
	h.ListByStudent(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "STU1", svc.lastArg)

	c, w = newTestContext(http.MethodGet, "/achievements/verified?category=poem", nil, nil)
	h.ListVerified(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/achievements/verified?category=researchPaper", nil, nil)
	h.ListVerified(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "researchPaper", svc.lastArg)

	c, w = newTestContext(http.MethodGet, "/achievements/search?q=%20%20", nil, nil)
	h.Search(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/achievements/search?q=robot", nil, nil)
	h.Search(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "robot", svc.lastArg)
}

func TestAchievementHandlerReview(t *testing.T) {
	verified := pending()
	verified.Status = models.StatusVerified
	svc := &achievementServiceMock{achievement: verified}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements/ach-1/review", body(`{"status":"verified","notes":"ok"}`), adminActor)
	c.Params = append(c.Params, ginParam("id", "ach-1"))
	h.Review(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusVerified, svc.lastTarget)
	assert.Equal(t, "ok", svc.lastNotes)
	assert.Equal(t, "admin-1", svc.lastActor.Principal)
}

func TestAchievementHandlerReviewValidation(t *testing.T) {
	svc := &achievementServiceMock{}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements/ach-1/review", body(`{"status":"pending"}`), adminActor)
	h.Review(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/achievements/ach-1/review", body(`{"status":"rejected","notes":"   "}`), adminActor)
	h.Review(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, "required", env.Error.Details["notes"])
	assert.Empty(t, svc.calledWith)
}

func TestAchievementHandlerReviewConflict(t *testing.T) {
	svc := &achievementServiceMock{err: appErrors.WithDetails(appErrors.ErrInvalidTransition, "cannot move", map[string]interface{}{
		"currentStatus": models.StatusVerified,
		"targetStatus":  models.StatusRejected,
	})}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/achievements/ach-1/review", body(`{"status":"rejected","notes":"dup"}`), adminActor)
	h.Review(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, "verified", env.Error.Details["currentStatus"])
}

func TestAchievementHandlerUpdate(t *testing.T) {
	svc := &achievementServiceMock{achievement: pending()}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPatch, "/achievements/ach-1", body(`{"title":"New title","date":"2024-04-02","links":[]}`), studentActor)
	c.Params = append(c.Params, ginParam("id", "ach-1"))
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastPatch.Title)
	assert.Equal(t, "New title", *svc.lastPatch.Title)
	require.NotNil(t, svc.lastPatch.Date)
	assert.Equal(t, 2024, svc.lastPatch.Date.Year())
	require.NotNil(t, svc.lastPatch.Links)
	assert.Empty(t, *svc.lastPatch.Links)
	assert.Nil(t, svc.lastPatch.Description)
}

func TestAchievementHandlerSummaryDefaultsToCaller(t *testing.T) {
	svc := &achievementServiceMock{summary: &models.AchievementSummary{Total: 2, Pending: 2}, summaryHit: true}
	h := NewAchievementHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodGet, "/achievements/summary", nil, studentActor)
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "STU1", svc.lastArg)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, true, env.Meta["cacheHit"])

	c, w = newTestContext(http.MethodGet, "/achievements/summary", nil, adminActor)
	h.Summary(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAchievementHandlerExport(t *testing.T) {
	exporter := &exporterMock{file: &service.ExportFile{Filename: "portfolio_STU1_20240510.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}}
	h := NewAchievementHandler(&achievementServiceMock{}, exporter, nil)

	c, w := newTestContext(http.MethodGet, "/achievements/export?format=pdf", nil, studentActor)
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "STU1", exporter.lastStudent)
	assert.Equal(t, service.ExportFormatPDF, exporter.lastFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "portfolio_STU1_20240510.pdf")

	c, w = newTestContext(http.MethodGet, "/achievements/export?format=xlsx", nil, studentActor)
	h.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	disabled := NewAchievementHandler(&achievementServiceMock{}, nil, nil)
	c, w = newTestContext(http.MethodGet, "/achievements/export", nil, studentActor)
	disabled.Export(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
