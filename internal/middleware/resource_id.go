package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/response"
)

// RequireUUIDParam answers notFound when the named path parameter is present
// but is not a UUID. Routes without the parameter pass through.
func RequireUUIDParam(name string, notFound *appErrors.Error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.Param(name); raw != "" {
			if _, err := uuid.Parse(raw); err != nil {
				response.Error(c, notFound)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
