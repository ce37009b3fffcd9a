package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
	"github.com/noah-isme/community-events-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error)
	Cancel(ctx context.Context, eventID, userID string) (*dto.CancellationOutcome, error)
	Withdraw(ctx context.Context, eventID, userID string) (*dto.WithdrawalOutcome, error)
	Notify(ctx context.Context, actor models.Actor, eventID string) (*dto.WaitlistOffer, error)
	Confirm(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error)
	Complete(ctx context.Context, actor models.Actor, eventID, userID string) error
}

type prerequisiteChecker interface {
	Check(ctx context.Context, userID, eventID string) (*dto.PrerequisiteCheck, error)
}

// RegistrationHandler exposes the per-user registration and waitlist flow.
type RegistrationHandler struct {
	registrations registrationService
	prereqs       prerequisiteChecker
}

// NewRegistrationHandler builds a RegistrationHandler.
func NewRegistrationHandler(registrations registrationService, prereqs prerequisiteChecker) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, prereqs: prereqs}
}

// Register godoc
// @Summary Register the caller, or join the waitlist when the event is full
// @Description Prerequisites are evaluated first; unmet ones are returned in error.details.
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /events/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	eventID := c.Param("id")

	check, err := h.prereqs.Check(c.Request.Context(), actor.UserID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !check.Satisfied {
		response.Error(c, appErrors.WithDetails(appErrors.ErrPrerequisitesUnmet, check.Unmet))
		return
	}

	outcome, err := h.registrations.Register(c.Request.Context(), eventID, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Cancel godoc
// @Summary Cancel the caller's registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/registration [delete]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	outcome, err := h.registrations.Cancel(c.Request.Context(), c.Param("id"), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Withdraw godoc
// @Summary Leave the waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/waitlist [delete]
func (h *RegistrationHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	outcome, err := h.registrations.Withdraw(c.Request.Context(), c.Param("id"), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Notify godoc
// @Summary Offer a spot to the oldest waiting entrant
// @Tags Waitlist
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /events/{id}/waitlist/notify [post]
func (h *RegistrationHandler) Notify(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	offer, err := h.registrations.Notify(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offer)
}

// Confirm godoc
// @Summary Accept a waitlist offer
// @Tags Waitlist
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /events/{id}/waitlist/confirm [post]
func (h *RegistrationHandler) Confirm(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	outcome, err := h.registrations.Confirm(c.Request.Context(), c.Param("id"), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Complete godoc
// @Summary Mark a registration as completed
// @Tags Registrations
// @Param id path string true "Event ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /events/{id}/registrations/{userId}/complete [post]
func (h *RegistrationHandler) Complete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.registrations.Complete(c.Request.Context(), actor, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
