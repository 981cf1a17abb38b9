package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/noah-isme/achievement-registry-api/internal/middleware"
	"github.com/noah-isme/achievement-registry-api/internal/models"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) models.Profile {
	return middleware.Actor(c)
}

// NewValidator returns a validator that reports field errors under their
// json or form names. It also knows the notblank rule, which fails
// whitespace-only text.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return validate
}

func newValidator(validate *validator.Validate) *validator.Validate {
	if validate != nil {
		return validate
	}
	return NewValidator()
}

// bindJSON decodes and validates the request body into dest.
func bindJSON(c *gin.Context, validate *validator.Validate, dest interface{}, message string) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return validateStruct(validate, dest, message)
}

// bindQuery decodes and validates query parameters into dest.
func bindQuery(c *gin.Context, validate *validator.Validate, dest interface{}, message string) error {
	if err := c.ShouldBindQuery(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return validateStruct(validate, dest, message)
}

func validateStruct(validate *validator.Validate, dest interface{}, message string) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	fields := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("%s: %s", message, summarise(fieldErrs)), fields)
}

func summarise(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
