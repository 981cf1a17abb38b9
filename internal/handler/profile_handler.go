package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/achievement-registry-api/internal/dto"
	"github.com/noah-isme/achievement-registry-api/internal/models"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
	"github.com/noah-isme/achievement-registry-api/pkg/response"
)

type profileService interface {
	GetCaller(ctx context.Context, principal string) (*models.Profile, error)
	SaveCaller(ctx context.Context, principal string, input models.ProfileInput) (*models.Profile, bool, error)
	Get(ctx context.Context, actor models.Profile, principal string) (*models.Profile, error)
	List(ctx context.Context, actor models.Profile, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error)
	Role(actor models.Profile) models.RoleInfo
}

// ProfileHandler exposes caller profile endpoints.
type ProfileHandler struct {
	service  profileService
	validate *validator.Validate
}

// NewProfileHandler builds the handler.
func NewProfileHandler(svc profileService, validate *validator.Validate) *ProfileHandler {
	return &ProfileHandler{service: svc, validate: newValidator(validate)}
}

// GetCaller godoc
// @Summary Get the caller's profile
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) GetCaller(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.GetCaller(c.Request.Context(), claims.Principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// SaveCaller godoc
// @Summary Create or update the caller's profile
// @Description Role and student id are fixed when the profile is first saved.
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SaveProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) SaveCaller(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveProfileRequest
	if err := bindJSON(c, h.validate, &req, "invalid profile payload"); err != nil {
		response.Error(c, err)
		return
	}
	profile, created, err := h.service.SaveCaller(c.Request.Context(), claims.Principal, models.ProfileInput{
		StudentID: req.StudentID,
		Name:      req.Name,
		Email:     req.Email,
		Bio:       req.Bio,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, profile)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Role godoc
// @Summary Describe the caller's role
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile/role [get]
func (h *ProfileHandler) Role(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Role(actorFromContext(c)), nil)
}

// List godoc
// @Summary List profiles
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Param role query string false "admin | user | guest"
// @Param search query string false "Name, email or student id fragment"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /profiles [get]
func (h *ProfileHandler) List(c *gin.Context) {
	var query dto.ProfileQuery
	if err := bindQuery(c, h.validate, &query, "invalid profile query"); err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ProfileFilter{Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}
	profiles, pagination, err := h.service.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, pagination)
}

// Get godoc
// @Summary Get a profile by principal
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Param principal path string true "Principal"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /profiles/{principal} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("principal"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
