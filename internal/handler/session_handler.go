package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, actor models.Actor, eventID string, req dto.CreateSessionRequest) (*models.Session, error)
	List(ctx context.Context, eventID string) ([]models.Session, error)
}

// SessionHandler records event sessions.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// List godoc
// @Summary List sessions of an event
// @Tags Sessions
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}

// Create godoc
// @Summary Record a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.service.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}
