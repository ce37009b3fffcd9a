package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/response"
)

// RequireRoles rejects callers whose role is not listed. Must run after JWT.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOrganizer admits organizers and admins.
func RequireOrganizer() gin.HandlerFunc {
	return RequireRoles(models.RoleOrganizer, models.RoleAdmin)
}
