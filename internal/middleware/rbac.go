package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
	"github.com/flextime-hq/flextime-api/pkg/response"
)

// SelfRole is the pseudo role accepted by RBAC. It grants access when the
// caller's user ID equals the :id path parameter, so students can read
// their own records on routes that are otherwise staff-only.
const SelfRole = "SELF"

// RBAC gates a route on the caller's role. The allowed list is parsed once
// at route registration, not per request.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{}, len(allowed))
	allowSelf := false
	for _, entry := range allowed {
		if entry == SelfRole {
			allowSelf = true
			continue
		}
		roles[models.UserRole(entry)] = struct{}{}
	}

	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := raw.(*models.JWTClaims)

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf && c.Param("id") != "" && c.Param("id") == claims.UserID {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is RBAC with typed roles and no self access.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
