package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/middleware"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Events        *EventHandler
	Registrations *RegistrationHandler
	Prerequisites *PrerequisiteHandler
	Sessions      *SessionHandler
	Rosters       *RosterHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts probes at the root and the API under prefix. auth guards every API route.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix, middleware.WithResponseMeta(), auth)
	organizer := middleware.RequireOrganizer()

	events := api.Group("/events", middleware.RequireUUIDParam("id", appErrors.ErrEventNotFound))
	events.GET("", h.Events.List)
	events.POST("", organizer, h.Events.Create)
	events.GET("/:id", h.Events.Get)
	events.PATCH("/:id", organizer, h.Events.Update)
	events.DELETE("/:id", organizer, h.Events.Delete)
	events.POST("/:id/archive", organizer, h.Events.Archive)
	events.GET("/:id/capacity", h.Events.Capacity)
	events.GET("/:id/roster", organizer, h.Rosters.Get)

	events.POST("/:id/register", h.Registrations.Register)
	events.DELETE("/:id/registration", h.Registrations.Cancel)
	events.DELETE("/:id/waitlist", h.Registrations.Withdraw)
	events.POST("/:id/waitlist/notify", organizer, h.Registrations.Notify)
	events.POST("/:id/waitlist/confirm", h.Registrations.Confirm)
	events.POST("/:id/registrations/:userId/complete", organizer, h.Registrations.Complete)

	events.GET("/:id/prerequisites", h.Prerequisites.ListForEvent)
	events.GET("/:id/prerequisites/check", h.Prerequisites.Check)
	events.GET("/:id/dependents", h.Prerequisites.Dependents)
	events.GET("/:id/sessions", h.Sessions.List)
	events.POST("/:id/sessions", organizer, h.Sessions.Create)

	prereqs := api.Group("/prerequisites", middleware.RequireUUIDParam("id", appErrors.ErrPrerequisiteNotFound))
	prereqs.POST("", organizer, h.Prerequisites.Create)
	prereqs.DELETE("/:id", organizer, h.Prerequisites.Remove)
}
