package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/middleware"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the caller or writes a 401 and returns false.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := models.ActorFromClaims(claimsFromContext(c))
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
