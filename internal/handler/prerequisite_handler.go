package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/response"
)

type prerequisiteService interface {
	Check(ctx context.Context, userID, eventID string) (*dto.PrerequisiteCheck, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreatePrerequisiteRequest) (*models.Prerequisite, error)
	Remove(ctx context.Context, actor models.Actor, id string) error
	ListForEvent(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error)
	ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error)
}

// PrerequisiteHandler exposes prerequisite management and evaluation.
type PrerequisiteHandler struct {
	service prerequisiteService
}

// NewPrerequisiteHandler builds a PrerequisiteHandler.
func NewPrerequisiteHandler(service prerequisiteService) *PrerequisiteHandler {
	return &PrerequisiteHandler{service: service}
}

// ListForEvent godoc
// @Summary List the prerequisites of an event
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/prerequisites [get]
func (h *PrerequisiteHandler) ListForEvent(c *gin.Context) {
	edges, err := h.service.ListForEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, edges)
}

// Dependents godoc
// @Summary List events that require this event
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/dependents [get]
func (h *PrerequisiteHandler) Dependents(c *gin.Context) {
	edges, err := h.service.ListDependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, edges)
}

// Check godoc
// @Summary Evaluate the caller's prerequisites for an event
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/prerequisites/check [get]
func (h *PrerequisiteHandler) Check(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Check(c.Request.Context(), actor.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create godoc
// @Summary Add a prerequisite
// @Tags Prerequisites
// @Accept json
// @Produce json
// @Param payload body dto.CreatePrerequisiteRequest true "Prerequisite payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /prerequisites [post]
func (h *PrerequisiteHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreatePrerequisiteRequest
	if !bindJSON(c, &req, "invalid prerequisite payload") {
		return
	}
	prereq, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, prereq)
}

// Remove godoc
// @Summary Remove a prerequisite
// @Tags Prerequisites
// @Param id path string true "Prerequisite ID"
// @Success 204
// @Router /prerequisites/{id} [delete]
func (h *PrerequisiteHandler) Remove(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
