package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

// EventService manages the event lifecycle, including cascading deletion.
type EventService struct {
	uow           unitOfWork
	events        eventStore
	registrations registrationStore
	waitlist      waitlistStore
	prereqs       prerequisiteStore
	sessions      sessionStore
	capacity      *CapacityService
	seats         seatFiller
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// seatFiller promotes waitlisted users into seats opened by a capacity change.
type seatFiller interface {
	fillOpenSeats(ctx context.Context, tx sqlx.ExtContext, event *models.Event, limit int) ([]string, error)
	announcePromotions(ctx context.Context, eventID string, userIDs []string)
}

// NewEventService builds an EventService. seats may be nil, in which case a
// capacity increase leaves the waitlist untouched.
func NewEventService(
	uow unitOfWork,
	events eventStore,
	registrations registrationStore,
	waitlist waitlistStore,
	prereqs prerequisiteStore,
	sessions sessionStore,
	capacity *CapacityService,
	seats seatFiller,
	validate *validator.Validate,
	logger *zap.Logger,
) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		uow:           uow,
		events:        events,
		registrations: registrations,
		waitlist:      waitlist,
		prereqs:       prereqs,
		sessions:      sessions,
		capacity:      capacity,
		seats:         seats,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// Create persists a new event owned by the actor.
func (s *EventService) Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if err := validateCapacity(req.MaxParticipants, req.Cost); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	creator := actor.UserID
	event := &models.Event{
		ID:                   uuid.NewString(),
		ActivityGroupName:    strings.TrimSpace(req.ActivityGroupName),
		EventDate:            req.EventDate.UTC(),
		MaxParticipants:      req.MaxParticipants,
		Cost:                 req.Cost,
		RegistrationRequired: req.RegistrationRequired,
		RegistrationDeadline: req.RegistrationDeadline,
		LocationID:           req.LocationID,
		CreatedBy:            &creator,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.events.Create(ctx, nil, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("actor", actor.UserID))
	return event, nil
}

// Update applies the non-nil fields of req to the event.
func (s *EventService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	var (
		updated  *models.Event
		promoted []string
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		promoted = nil
		event, err := s.events.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return appErrors.ErrEventNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock event")
		}
		if event.IsDeleted {
			return appErrors.ErrEventNotFound
		}
		if req.Empty() {
			updated = event
			return nil
		}

		applyEventUpdate(event, req)
		if err := validateCapacity(event.MaxParticipants, event.Cost); err != nil {
			return err
		}
		event.UpdatedAt = s.now().UTC()
		if err := s.events.Update(ctx, tx, event); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
		}
		// A raised or removed limit opens seats; the queue takes them before any newcomer.
		if s.seats != nil {
			if promoted, err = s.seats.fillOpenSeats(ctx, tx, event, 0); err != nil {
				return err
			}
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.capacity.Invalidate(ctx, id)
	s.logger.Info("event updated", zap.String("event_id", id), zap.String("actor", actor.UserID), zap.Int("promoted", len(promoted)))
	if s.seats != nil {
		s.seats.announcePromotions(ctx, id, promoted)
	}
	return updated, nil
}

func applyEventUpdate(event *models.Event, req dto.UpdateEventRequest) {
	if req.ActivityGroupName != nil {
		event.ActivityGroupName = strings.TrimSpace(*req.ActivityGroupName)
	}
	if req.EventDate != nil {
		event.EventDate = req.EventDate.UTC()
	}
	if req.ClearMaxParticipants {
		event.MaxParticipants = nil
	} else if req.MaxParticipants != nil {
		limit := *req.MaxParticipants
		event.MaxParticipants = &limit
	}
	if req.Cost != nil {
		event.Cost = *req.Cost
	}
	if req.RegistrationRequired != nil {
		event.RegistrationRequired = *req.RegistrationRequired
	}
	if req.ClearRegistrationDeadline {
		event.RegistrationDeadline = nil
	} else if req.RegistrationDeadline != nil {
		deadline := req.RegistrationDeadline.UTC()
		event.RegistrationDeadline = &deadline
	}
	if req.ClearLocation {
		event.LocationID = nil
	} else if req.LocationID != nil {
		location := *req.LocationID
		event.LocationID = &location
	}
}

func validateCapacity(max *int, cost float64) error {
	if (max != nil && *max < 0) || cost < 0 {
		return appErrors.ErrInvalidCapacity
	}
	return nil
}

// Delete removes the event and every dependent row in one transaction.
func (s *EventService) Delete(ctx context.Context, actor models.Actor, id string) (*dto.DeletionSummary, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	summary := &dto.DeletionSummary{EventID: id}
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := s.events.LockByID(ctx, tx, id); err != nil {
			if isNoRows(err) {
				return appErrors.ErrEventNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock event")
		}

		var err error
		if summary.Prerequisites, err = s.prereqs.DeleteByEvent(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete prerequisites")
		}
		if summary.Registrations, err = s.registrations.DeleteByEvent(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete registrations")
		}
		if summary.WaitlistItems, err = s.waitlist.DeleteByEvent(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete waitlist")
		}
		if summary.Sessions, err = s.sessions.DeleteByEvent(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
		}
		n, err := s.events.Delete(ctx, tx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
		}
		if n == 0 {
			return appErrors.ErrEventNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.capacity.Invalidate(ctx, id)
	s.logger.Info("event deleted",
		zap.String("event_id", id),
		zap.String("actor", actor.UserID),
		zap.Int64("registrations", summary.Registrations),
		zap.Int64("waitlist_entries", summary.WaitlistItems),
		zap.Int64("prerequisites", summary.Prerequisites),
		zap.Int64("sessions", summary.Sessions))
	return summary, nil
}

// SoftDelete marks the event deleted and keeps its dependents. Repeating it is a no-op.
func (s *EventService) SoftDelete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsOrganizer() {
		return appErrors.ErrForbidden
	}
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		event, err := s.events.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return appErrors.ErrEventNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock event")
		}
		if event.IsDeleted {
			return nil
		}
		if err := s.events.SoftDelete(ctx, tx, id, s.now().UTC()); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive event")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.capacity.Invalidate(ctx, id)
	s.logger.Info("event archived", zap.String("event_id", id), zap.String("actor", actor.UserID))
	return nil
}

// Get returns an active event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	return loadActiveEvent(ctx, s.events, nil, id)
}

// List returns active events with pagination metadata.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	filter := models.EventFilter{Search: strings.TrimSpace(query.Search), Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
