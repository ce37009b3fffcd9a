package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/internal/service"
	"github.com/noah-isme/community-events-api/pkg/response"
)

type rosterService interface {
	Roster(ctx context.Context, actor models.Actor, eventID string) (*dto.Roster, error)
	Export(ctx context.Context, actor models.Actor, eventID, format string) (*service.RosterFile, error)
}

// RosterHandler serves event rosters.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler builds a RosterHandler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// Get godoc
// @Summary Roster of registered users and the waitlist
// @Tags Events
// @Produce json,text/csv,application/pdf
// @Param id path string true "Event ID"
// @Param format query string false "json (default), csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/roster [get]
func (h *RosterHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", service.RosterFormatJSON))
	if format == service.RosterFormatJSON {
		roster, err := h.service.Roster(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, roster)
		return
	}

	file, err := h.service.Export(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
