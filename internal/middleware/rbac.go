package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/policy"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
	"github.com/noah-isme/achievement-registry-api/pkg/response"
)

// RequireRoles enforces role-based access using the role stored on the caller
// profile. Token contents never grant a role.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if Claims(c) == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		actor := Actor(c)
		if _, ok := allowed[actor.Role]; ok {
			c.Next()
			return
		}
		response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, "role not permitted", map[string]interface{}{
			"role": actor.Role,
		}))
		c.Abort()
	}
}

// RequireAdmin admits callers holding the verify capability.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Claims(c) == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		actor := Actor(c)
		if policy.CanVerify(actor) {
			c.Next()
			return
		}
		response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, "admin role required", map[string]interface{}{
			"requiredCapability": policy.CapabilityVerify,
			"role":               actor.Role,
		}))
		c.Abort()
	}
}
