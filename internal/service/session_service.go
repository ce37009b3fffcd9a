package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

// SessionService records event sessions, the attendance history prerequisites are evaluated against.
type SessionService struct {
	sessions  sessionStore
	events    eventStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService builds a SessionService.
func NewSessionService(sessions sessionStore, events eventStore, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, events: events, validator: validate, logger: logger, now: time.Now}
}

// Create records a session for an active event.
func (s *SessionService) Create(ctx context.Context, actor models.Actor, eventID string, req dto.CreateSessionRequest) (*models.Session, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if _, err := loadActiveEvent(ctx, s.events, nil, eventID); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		EventID:     eventID,
		SessionDate: dateOf(req.SessionDate),
		Attendance:  req.Attendance,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, nil, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record session")
	}
	s.logger.Info("session recorded", zap.String("event_id", eventID), zap.String("session_id", session.ID))
	return session, nil
}

// List returns the sessions of an active event.
func (s *SessionService) List(ctx context.Context, eventID string) ([]models.Session, error) {
	if _, err := loadActiveEvent(ctx, s.events, nil, eventID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}
