package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
	"github.com/noah-isme/achievement-registry-api/pkg/response"
)

// ContextProfileKey is the gin context key storing the caller profile.
const ContextProfileKey = "currentProfile"

type profileLoader interface {
	GetCaller(ctx context.Context, principal string) (*models.Profile, error)
}

// LoadProfile resolves the stored profile of the authenticated principal.
// Callers without a token or without a saved profile continue as guests;
// lookup failures other than not-found abort the request.
func LoadProfile(profiles profileLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.Next()
			return
		}
		profile, err := profiles.GetCaller(c.Request.Context(), claims.Principal)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				c.Next()
				return
			}
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextProfileKey, profile)
		c.Next()
	}
}

// RequireProfile rejects callers that have not saved a profile yet.
func RequireProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Profile(c); !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Profile returns the loaded caller profile.
func Profile(c *gin.Context) (*models.Profile, bool) {
	value, exists := c.Get(ContextProfileKey)
	if !exists {
		return nil, false
	}
	profile, ok := value.(*models.Profile)
	return profile, ok && profile != nil
}

// Actor returns the caller profile, or a guest carrying the token principal
// when no profile is stored.
func Actor(c *gin.Context) models.Profile {
	if profile, ok := Profile(c); ok {
		return *profile
	}
	actor := models.Profile{Role: models.RoleGuest}
	if claims := Claims(c); claims != nil {
		actor.Principal = claims.Principal
	}
	return actor
}
