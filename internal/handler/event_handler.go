package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/middleware"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateEventRequest) (*models.Event, error)
	Delete(ctx context.Context, actor models.Actor, id string) (*dto.DeletionSummary, error)
	SoftDelete(ctx context.Context, actor models.Actor, id string) error
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error)
}

type capacityReader interface {
	Snapshot(ctx context.Context, eventID string) (*dto.CapacitySnapshot, bool, error)
}

// EventHandler exposes event lifecycle endpoints.
type EventHandler struct {
	events   eventService
	capacity capacityReader
}

// NewEventHandler builds an EventHandler.
func NewEventHandler(events eventService, capacity capacityReader) *EventHandler {
	return &EventHandler{events: events, capacity: capacity}
}

// List godoc
// @Summary List active events
// @Tags Events
// @Produce json
// @Param search query string false "Activity group name filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query"))
		return
	}
	events, page, err := h.events.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, page)
}

// Get godoc
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Create godoc
// @Summary Create an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.events.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update event fields
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.events.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Delete godoc
// @Summary Delete an event and everything attached to it
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.events.Delete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Archive godoc
// @Summary Soft delete an event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id}/archive [post]
func (h *EventHandler) Archive(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.events.SoftDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Capacity godoc
// @Summary Current occupancy of an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/capacity [get]
func (h *EventHandler) Capacity(c *gin.Context) {
	snapshot, hit, err := h.capacity.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, snapshot, nil, middleware.ExtractMeta(c))
}
