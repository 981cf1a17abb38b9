package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/achievement-registry-api/internal/dto"
	"github.com/noah-isme/achievement-registry-api/internal/middleware"
	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
	"github.com/noah-isme/achievement-registry-api/pkg/response"
)

type achievementService interface {
	Create(ctx context.Context, actor models.Profile, input models.AchievementInput) (*models.Achievement, error)
	Get(ctx context.Context, id string) (*models.Achievement, error)
	ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error)
	ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error)
	Search(ctx context.Context, term string) ([]models.Achievement, error)
	ListPending(ctx context.Context, actor models.Profile) ([]models.Achievement, error)
	Review(ctx context.Context, actor models.Profile, id string, target models.VerificationStatus, notes string) (*models.Achievement, error)
	Update(ctx context.Context, actor models.Profile, id string, patch models.AchievementPatch) (*models.Achievement, error)
	Summary(ctx context.Context, studentID string) (*models.AchievementSummary, bool, error)
}

type portfolioExporter interface {
	Portfolio(ctx context.Context, actor models.Profile, studentID string, format service.ExportFormat) (*service.ExportFile, error)
}

// AchievementHandler exposes achievement registration, review and lookup endpoints.
type AchievementHandler struct {
	service  achievementService
	exporter portfolioExporter
	validate *validator.Validate
}

// NewAchievementHandler builds the handler. exporter may be nil when exports are disabled.
func NewAchievementHandler(svc achievementService, exporter portfolioExporter, validate *validator.Validate) *AchievementHandler {
	return &AchievementHandler{service: svc, exporter: exporter, validate: newValidator(validate)}
}

// ListByStudent godoc
// @Summary List achievements of a student
// @Tags Achievements
// @Produce json
// @Param studentId query string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /achievements [get]
func (h *AchievementHandler) ListByStudent(c *gin.Context) {
	var query dto.AchievementQuery
	if err := bindQuery(c, h.validate, &query, "invalid achievement query"); err != nil {
		response.Error(c, err)
		return
	}
	if query.StudentID == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "studentId is required", map[string]interface{}{"studentId": "required"}))
		return
	}
	items, err := h.service.ListByStudentID(c.Request.Context(), query.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListVerified godoc
// @Summary List verified achievements in a category
// @Tags Achievements
// @Produce json
// @Param category query string true "certificate | researchPaper | hackathon | project"
// @Success 200 {object} response.Envelope
// @Router /achievements/verified [get]
func (h *AchievementHandler) ListVerified(c *gin.Context) {
	var query dto.AchievementQuery
	if err := bindQuery(c, h.validate, &query, "invalid achievement query"); err != nil {
		response.Error(c, err)
		return
	}
	if query.Category == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "category is required", map[string]interface{}{"category": "required"}))
		return
	}
	items, err := h.service.ListVerifiedByCategory(c.Request.Context(), models.AchievementCategory(query.Category))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Search godoc
// @Summary Search achievements by title or description
// @Tags Achievements
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {object} response.Envelope
// @Router /achievements/search [get]
func (h *AchievementHandler) Search(c *gin.Context) {
	var query dto.AchievementQuery
	if err := bindQuery(c, h.validate, &query, "invalid search query"); err != nil {
		response.Error(c, err)
		return
	}
	term := strings.TrimSpace(query.Query)
	if term == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "q is required", map[string]interface{}{"q": "required"}))
		return
	}
	items, err := h.service.Search(c.Request.Context(), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get an achievement
// @Description meta.permissions describes what the caller may do with the record.
// @Tags Achievements
// @Produce json
// @Param id path string true "Achievement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /achievements/{id} [get]
func (h *AchievementHandler) Get(c *gin.Context) {
	achievement, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "permissions", policy.For(actorFromContext(c), *achievement))
	response.JSON(c, http.StatusOK, achievement, nil, middleware.ExtractMeta(c))
}

// ListPending godoc
// @Summary List achievements awaiting verification
// @Tags Achievements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /achievements/pending [get]
func (h *AchievementHandler) ListPending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Register an achievement for the calling student
// @Tags Achievements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateAchievementRequest true "Achievement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /achievements [post]
func (h *AchievementHandler) Create(c *gin.Context) {
	var req dto.CreateAchievementRequest
	if err := bindJSON(c, h.validate, &req, "invalid achievement payload"); err != nil {
		response.Error(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	achievement, err := h.service.Create(c.Request.Context(), actorFromContext(c), models.AchievementInput{
		AchievementID:    req.AchievementID,
		StudentID:        req.StudentID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         models.AchievementCategory(req.Category),
		Date:             date,
		Links:            req.Links,
		CertificateImage: req.CertificateImage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, achievement)
}

// Update godoc
// @Summary Edit a pending achievement
// @Tags Achievements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Achievement ID"
// @Param payload body dto.UpdateAchievementRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /achievements/{id} [patch]
func (h *AchievementHandler) Update(c *gin.Context) {
	var req dto.UpdateAchievementRequest
	if err := bindJSON(c, h.validate, &req, "invalid achievement payload"); err != nil {
		response.Error(c, err)
		return
	}
	patch := models.AchievementPatch{
		Title:            req.Title,
		Description:      req.Description,
		Links:            req.Links,
		CertificateImage: req.CertificateImage,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			response.Error(c, err)
			return
		}
		patch.Date = &date
	}
	achievement, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, achievement, nil)
}

// Review godoc
// @Summary Verify or reject a pending achievement
// @Tags Achievements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Achievement ID"
// @Param payload body dto.ReviewAchievementRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /achievements/{id}/review [post]
func (h *AchievementHandler) Review(c *gin.Context) {
	var req dto.ReviewAchievementRequest
	if err := bindJSON(c, h.validate, &req, "invalid review payload"); err != nil {
		response.Error(c, err)
		return
	}
	target := models.VerificationStatus(req.Status)
	if target == models.StatusRejected && strings.TrimSpace(req.Notes) == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "notes are required when rejecting", map[string]interface{}{"notes": "required"}))
		return
	}
	achievement, err := h.service.Review(c.Request.Context(), actorFromContext(c), c.Param("id"), target, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, achievement, nil)
}

// Summary godoc
// @Summary Status counts for a student
// @Description Defaults to the caller's own student id.
// @Tags Achievements
// @Produce json
// @Param studentId query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /achievements/summary [get]
func (h *AchievementHandler) Summary(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("studentId"))
	if studentID == "" {
		studentID = actorFromContext(c).StudentIDValue()
	}
	if studentID == "" {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "studentId is required", map[string]interface{}{"studentId": "required"}))
		return
	}
	summary, hit, err := h.service.Summary(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary.StudentID = studentID
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a student's achievement portfolio
// @Tags Achievements
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId query string false "Student ID (defaults to caller)"
// @Param format query string false "csv | pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /achievements/export [get]
func (h *AchievementHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	var query dto.AchievementQuery
	if err := bindQuery(c, h.validate, &query, "invalid export query"); err != nil {
		response.Error(c, err)
		return
	}
	actor := actorFromContext(c)
	studentID := query.StudentID
	if studentID == "" {
		studentID = actor.StudentIDValue()
	}
	format := service.ExportFormat(query.Format)
	if format == "" {
		format = service.ExportFormatCSV
	}
	file, err := h.exporter.Portfolio(c.Request.Context(), actor, studentID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(dto.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, appErrors.WithDetails(appErrors.ErrValidation, "date must be YYYY-MM-DD", map[string]interface{}{"date": "datetime"})
	}
	return date, nil
}
