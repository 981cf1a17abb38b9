package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/search"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

func TestProfileHandlerSaveCaller(t *testing.T) {
	svc := &profileServiceMock{created: true}
	h := NewProfileHandler(svc, nil)

	c, w := newTestContext(http.MethodPut, "/profile", body(`{"studentId":"STU9","name":"Ana","email":"ana@example.com"}`), studentActor)
	h.SaveCaller(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "STU9", *svc.lastSave.StudentID)

	svc.created = false
	c, w = newTestContext(http.MethodPut, "/profile", body(`{"name":"Ana","email":"ana@example.com"}`), studentActor)
	h.SaveCaller(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileHandlerSaveCallerValidation(t *testing.T) {
	h := NewProfileHandler(&profileServiceMock{}, nil)

	c, w := newTestContext(http.MethodPut, "/profile", body(`{"name":"A","email":"nope"}`), studentActor)
	h.SaveCaller(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, "min", env.Error.Details["name"])
	assert.Equal(t, "email", env.Error.Details["email"])
}

func TestProfileHandlerSaveCallerRejectsWhitespaceName(t *testing.T) {
	svc := &profileServiceMock{}
	h := NewProfileHandler(svc, nil)

	c, w := newTestContext(http.MethodPut, "/profile", body(`{"name":"    ","email":"ana@example.com"}`), studentActor)
	h.SaveCaller(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w.Body.Bytes())
	assert.Equal(t, "notblank", env.Error.Details["name"])
	assert.Empty(t, svc.lastSave.Name)
}

func TestProfileHandlerSaveCallerConflict(t *testing.T) {
	h := NewProfileHandler(&profileServiceMock{saveErr: appErrors.Clone(appErrors.ErrConflict, "student id already registered")}, nil)

	c, w := newTestContext(http.MethodPut, "/profile", body(`{"studentId":"STU1","name":"Ana","email":"ana@example.com"}`), studentActor)
	h.SaveCaller(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProfileHandlerGetCallerRequiresToken(t *testing.T) {
	h := NewProfileHandler(&profileServiceMock{}, nil)
	c, w := newTestContext(http.MethodGet, "/profile", nil, nil)
	h.GetCaller(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileHandlerListParsesFilter(t *testing.T) {
	svc := &profileServiceMock{}
	h := NewProfileHandler(svc, nil)

	c, w := newTestContext(http.MethodGet, "/profiles?role=user&search=ana&page=2&pageSize=10", nil, adminActor)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastList.Role)
	assert.Equal(t, models.RoleUser, *svc.lastList.Role)
	assert.Equal(t, "ana", svc.lastList.Search)
	assert.Equal(t, 2, svc.lastList.Page)
	assert.Equal(t, 10, svc.lastList.PageSize)

	c, w = newTestContext(http.MethodGet, "/profiles?role=owner", nil, adminActor)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileHandlerRoleForAnonymous(t *testing.T) {
	h := NewProfileHandler(&profileServiceMock{}, nil)
	c, w := newTestContext(http.MethodGet, "/profile/role", nil, nil)
	h.Role(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"principal":"","role":"guest","isAdmin":false}}`, w.Body.String())
}

func TestAssistantHandlerQuery(t *testing.T) {
	svc := &assistantServiceMock{result: &service.AssistantResult{
		Type:         service.AssistantTypeClarification,
		Message:      search.ClarificationMessage,
		Achievements: []models.Achievement{},
	}}
	h := NewAssistantHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/assistant/query", body(`{"prompt":"hi"}`), nil)
	h.Query(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", svc.lastPrompt)
	env := decode(t, w.Body.Bytes())
	assert.Contains(t, string(env.Data), `"type":"clarification"`)
	assert.Equal(t, false, env.Meta["cacheHit"])

	c, w = newTestContext(http.MethodPost, "/assistant/query", body(`{"prompt":""}`), nil)
	h.Query(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
