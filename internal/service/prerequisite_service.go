package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/database"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

type qualifyingReader interface {
	ListQualifying(ctx context.Context, userID string, eventIDs []string) ([]models.QualifyingRecord, error)
}

// PrerequisiteService manages prerequisite edges and evaluates them for users.
type PrerequisiteService struct {
	uow       unitOfWork
	prereqs   prerequisiteStore
	events    eventStore
	history   qualifyingReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPrerequisiteService builds a PrerequisiteService.
func NewPrerequisiteService(uow unitOfWork, prereqs prerequisiteStore, events eventStore, history qualifyingReader, validate *validator.Validate, logger *zap.Logger) *PrerequisiteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerequisiteService{
		uow:       uow,
		prereqs:   prereqs,
		events:    events,
		history:   history,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Check evaluates every prerequisite of eventID for userID and returns the full unmet set.
func (s *PrerequisiteService) Check(ctx context.Context, userID, eventID string) (*dto.PrerequisiteCheck, error) {
	if _, err := s.activeEvent(ctx, eventID); err != nil {
		return nil, err
	}

	edges, err := s.prereqs.ListRequirements(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	result := &dto.PrerequisiteCheck{EventID: eventID, UserID: userID, Satisfied: true, Unmet: []dto.UnmetPrerequisite{}}
	if len(edges) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.PrerequisiteEventID)
	}
	records, err := s.history.ListQualifying(ctx, userID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration history")
	}

	result.Unmet = evaluatePrerequisites(edges, records, s.now())
	result.Satisfied = len(result.Unmet) == 0
	return result, nil
}

// evaluatePrerequisites returns one UnmetPrerequisite per edge that no record satisfies.
// A record qualifies when it is completed, meets the attendance threshold and its session
// falls on or after today minus the qualification period.
func evaluatePrerequisites(edges []models.PrerequisiteEdge, records []models.QualifyingRecord, now time.Time) []dto.UnmetPrerequisite {
	byEvent := make(map[string][]models.QualifyingRecord, len(records))
	for _, rec := range records {
		byEvent[rec.EventID] = append(byEvent[rec.EventID], rec)
	}

	today := dateOf(now)
	unmet := []dto.UnmetPrerequisite{}
	for _, edge := range edges {
		cutoff := today.AddDate(0, 0, -edge.QualificationPeriod)
		met := false
		for _, rec := range byEvent[edge.PrerequisiteEventID] {
			if rec.Status == models.RegistrationCompleted &&
				rec.Attendance >= edge.MinimumPerformance &&
				!dateOf(rec.SessionDate).Before(cutoff) {
				met = true
				break
			}
		}
		if !met {
			unmet = append(unmet, dto.UnmetPrerequisite{
				PrerequisiteID:      edge.ID,
				EventID:             edge.PrerequisiteEventID,
				EventName:           edge.RelatedEventName,
				EventDate:           edge.RelatedEventDate,
				MinimumPerformance:  edge.MinimumPerformance,
				QualificationPeriod: edge.QualificationPeriod,
				IsWaiverAllowed:     edge.IsWaiverAllowed,
			})
		}
	}
	return unmet
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create adds a prerequisite edge.
func (s *PrerequisiteService) Create(ctx context.Context, actor models.Actor, req dto.CreatePrerequisiteRequest) (*models.Prerequisite, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prerequisite payload")
	}
	if req.EventID == req.PrerequisiteEventID {
		return nil, appErrors.ErrSelfPrerequisite
	}

	prereq := &models.Prerequisite{
		ID:                  uuid.NewString(),
		EventID:             req.EventID,
		PrerequisiteEventID: req.PrerequisiteEventID,
		MinimumPerformance:  req.MinimumPerformance,
		QualificationPeriod: req.QualificationPeriod,
		IsWaiverAllowed:     req.IsWaiverAllowed,
		CreatedAt:           s.now().UTC(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		for _, id := range []string{req.EventID, req.PrerequisiteEventID} {
			event, err := s.events.FindByID(ctx, tx, id)
			if err != nil {
				if isNoRows(err) {
					return appErrors.Clone(appErrors.ErrEventNotFound, "event "+id+" not found")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
			}
			if event.IsDeleted {
				return appErrors.Clone(appErrors.ErrEventNotFound, "event "+id+" not found")
			}
		}
		exists, err := s.prereqs.Exists(ctx, tx, req.EventID, req.PrerequisiteEventID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisite")
		}
		if exists {
			return appErrors.ErrDuplicatePrerequisite
		}
		if err := s.prereqs.Create(ctx, tx, prereq); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.ErrDuplicatePrerequisite
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create prerequisite")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("prerequisite created",
		zap.String("event_id", prereq.EventID),
		zap.String("prerequisite_event_id", prereq.PrerequisiteEventID),
		zap.String("actor", actor.UserID))
	return prereq, nil
}

// Remove deletes a prerequisite edge by id.
func (s *PrerequisiteService) Remove(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsOrganizer() {
		return appErrors.ErrForbidden
	}
	removed, err := s.prereqs.Delete(ctx, nil, id)
	if err != nil {
		if isNoRows(err) {
			return appErrors.ErrPrerequisiteNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove prerequisite")
	}
	if !removed {
		return appErrors.ErrPrerequisiteNotFound
	}
	s.logger.Info("prerequisite removed", zap.String("prerequisite_id", id), zap.String("actor", actor.UserID))
	return nil
}

// ListForEvent returns the requirements of eventID.
func (s *PrerequisiteService) ListForEvent(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	if _, err := s.activeEvent(ctx, eventID); err != nil {
		return nil, err
	}
	edges, err := s.prereqs.ListRequirements(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
	}
	return edges, nil
}

// ListDependents returns the events that require eventID.
func (s *PrerequisiteService) ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	if _, err := s.activeEvent(ctx, eventID); err != nil {
		return nil, err
	}
	edges, err := s.prereqs.ListDependents(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dependent events")
	}
	return edges, nil
}

func (s *PrerequisiteService) activeEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return loadActiveEvent(ctx, s.events, nil, eventID)
}

func loadActiveEvent(ctx context.Context, events eventStore, exec sqlx.ExtContext, eventID string) (*models.Event, error) {
	event, err := events.FindByID(ctx, exec, eventID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.IsDeleted {
		return nil, appErrors.ErrEventNotFound
	}
	return event, nil
}
