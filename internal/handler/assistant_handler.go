package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/achievement-registry-api/internal/dto"
	"github.com/noah-isme/achievement-registry-api/internal/middleware"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	"github.com/noah-isme/achievement-registry-api/pkg/response"
)

type assistantService interface {
	Query(ctx context.Context, prompt string) (*service.AssistantResult, bool, error)
}

// AssistantHandler answers natural-language achievement queries.
type AssistantHandler struct {
	service  assistantService
	validate *validator.Validate
}

// NewAssistantHandler builds the handler.
func NewAssistantHandler(svc assistantService, validate *validator.Validate) *AssistantHandler {
	return &AssistantHandler{service: svc, validate: newValidator(validate)}
}

// Query godoc
// @Summary Ask the achievement assistant
// @Description Returns matching achievements, or type "clarification" when the prompt names no student, category or search terms.
// @Tags Assistant
// @Accept json
// @Produce json
// @Param payload body dto.AssistantQueryRequest true "Prompt"
// @Success 200 {object} response.Envelope
// @Router /assistant/query [post]
func (h *AssistantHandler) Query(c *gin.Context) {
	var req dto.AssistantQueryRequest
	if err := bindJSON(c, h.validate, &req, "invalid assistant query"); err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.service.Query(c.Request.Context(), req.Prompt)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
