package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/database"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

// Transition labels recorded in metrics.
const (
	TransitionRegistered  = "registered"
	TransitionWaitlisted  = "waitlisted"
	TransitionCancelled   = "cancelled"
	TransitionPromoted    = "promoted"
	TransitionNotified    = "notified"
	TransitionConfirmed   = "confirmed"
	TransitionWithdrawn   = "withdrawn"
	TransitionCompleted   = "completed"
	TransitionOfferExpiry = "offer_expired"
)

// offerDispatcher hands committed outcomes to the notification pipeline.
type offerDispatcher interface {
	DispatchOffer(ctx context.Context, offer dto.WaitlistOffer) error
	DispatchPromotion(ctx context.Context, eventID, userID string) error
}

// RegistrationService is the per-event registration state machine. Every transition
// runs in one unit of work that starts by locking the event row.
type RegistrationService struct {
	uow           unitOfWork
	events        eventStore
	registrations registrationStore
	waitlist      waitlistStore
	capacity      *CapacityService
	dispatcher    offerDispatcher
	metrics       *MetricsService
	logger        *zap.Logger
	offerTTL      time.Duration
	now           func() time.Time
}

// NewRegistrationService builds a RegistrationService. dispatcher and metrics may be nil.
func NewRegistrationService(
	uow unitOfWork,
	events eventStore,
	registrations registrationStore,
	waitlist waitlistStore,
	capacity *CapacityService,
	dispatcher offerDispatcher,
	metrics *MetricsService,
	logger *zap.Logger,
	offerTTL time.Duration,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if offerTTL <= 0 {
		offerTTL = 48 * time.Hour
	}
	return &RegistrationService{
		uow:           uow,
		events:        events,
		registrations: registrations,
		waitlist:      waitlist,
		capacity:      capacity,
		dispatcher:    dispatcher,
		metrics:       metrics,
		logger:        logger,
		offerTTL:      offerTTL,
		now:           time.Now,
	}
}

// Register admits userID to eventID, or queues them when the event is full.
// Prerequisites are the caller's concern and are not re-checked here.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	outcome := &dto.RegistrationOutcome{EventID: eventID, UserID: userID}

	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		event, err := s.lockActiveEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if event.RegistrationClosed(now) {
			return appErrors.ErrRegistrationClosed
		}

		if _, err := s.registrations.FindActive(ctx, tx, eventID, userID); err == nil {
			return appErrors.ErrAlreadyRegistered
		} else if !isNoRows(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}
		if _, err := s.waitlist.Find(ctx, tx, eventID, userID); err == nil {
			return appErrors.ErrAlreadyWaitlisted
		} else if !isNoRows(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
		}

		full, err := s.capacity.IsFull(ctx, tx, event)
		if err != nil {
			return err
		}
		if !full {
			reg, err := s.createRegistration(ctx, tx, eventID, userID, now)
			if err != nil {
				return err
			}
			outcome.Result = dto.ResultRegistered
			outcome.RegistrationID = reg.ID
			return nil
		}

		entry := &models.WaitlistEntry{
			ID:      uuid.NewString(),
			EventID: eventID,
			UserID:  userID,
			Status:  models.WaitlistWaiting,
		}
		if err := s.waitlist.Create(ctx, tx, entry); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.ErrAlreadyWaitlisted
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
		}
		pos, err := s.waitlist.Position(ctx, tx, entry)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute waitlist position")
		}
		outcome.Result = dto.ResultWaitlisted
		outcome.WaitlistID = entry.ID
		outcome.WaitlistPosition = pos
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.capacity.Invalidate(ctx, eventID)
	if outcome.Result == dto.ResultRegistered {
		s.metrics.RecordTransition(TransitionRegistered)
		s.logger.Info("registration created", zap.String("event_id", eventID), zap.String("user_id", userID))
	} else {
		s.metrics.RecordTransition(TransitionWaitlisted)
		s.logger.Info("waitlist joined", zap.String("event_id", eventID), zap.String("user_id", userID),
			zap.Int("position", outcome.WaitlistPosition))
	}
	return outcome, nil
}

// Cancel removes the user's active registration and, when a seat opens, promotes the head
// of the waitlist in the same transaction. Cancelling without a registration is a no-op.
func (s *RegistrationService) Cancel(ctx context.Context, eventID, userID string) (*dto.CancellationOutcome, error) {
	outcome := &dto.CancellationOutcome{EventID: eventID, UserID: userID}

	var promoted []string
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		promoted = nil
		event, err := s.lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		removed, err := s.registrations.DeleteActive(ctx, tx, eventID, userID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
		}
		if !removed {
			return nil
		}
		outcome.Cancelled = true
		if event.IsDeleted {
			return nil
		}

		promoted, err = s.fillOpenSeats(ctx, tx, event, 1)
		if err != nil {
			return err
		}
		if len(promoted) > 0 {
			head := promoted[0]
			outcome.PromotedUserID = &head
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !outcome.Cancelled {
		return outcome, nil
	}

	s.capacity.Invalidate(ctx, eventID)
	s.metrics.RecordTransition(TransitionCancelled)
	s.logger.Info("registration cancelled", zap.String("event_id", eventID), zap.String("user_id", userID))
	s.announcePromotions(ctx, eventID, promoted)
	return outcome, nil
}

// fillOpenSeats promotes waitlist heads, oldest first, while seats are open.
// A positive limit caps the number of promotions. The caller must hold the
// event lock in tx.
func (s *RegistrationService) fillOpenSeats(ctx context.Context, tx sqlx.ExtContext, event *models.Event, limit int) ([]string, error) {
	var promoted []string
	for limit <= 0 || len(promoted) < limit {
		full, err := s.capacity.IsFull(ctx, tx, event)
		if err != nil {
			return nil, err
		}
		if full {
			return promoted, nil
		}
		head, err := s.waitlist.OldestForUpdate(ctx, tx, event.ID, "")
		if err != nil {
			if isNoRows(err) {
				return promoted, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist head")
		}
		if err := s.promote(ctx, tx, head); err != nil {
			return nil, err
		}
		promoted = append(promoted, head.UserID)
	}
	return promoted, nil
}

// announcePromotions records and dispatches promotions once their unit of work has committed.
func (s *RegistrationService) announcePromotions(ctx context.Context, eventID string, userIDs []string) {
	for _, userID := range userIDs {
		s.metrics.RecordTransition(TransitionPromoted)
		s.metrics.RecordPromotion()
		s.logger.Info("waitlist promoted", zap.String("event_id", eventID), zap.String("user_id", userID))
		s.dispatchPromotion(ctx, eventID, userID)
	}
}

// Withdraw removes the user's waitlist entry. Withdrawing without an entry is a no-op.
func (s *RegistrationService) Withdraw(ctx context.Context, eventID, userID string) (*dto.WithdrawalOutcome, error) {
	outcome := &dto.WithdrawalOutcome{EventID: eventID, UserID: userID}
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := s.lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		removed, err := s.waitlist.DeleteByUser(ctx, tx, eventID, userID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw from waitlist")
		}
		outcome.Withdrawn = removed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.Withdrawn {
		s.capacity.Invalidate(ctx, eventID)
		s.metrics.RecordTransition(TransitionWithdrawn)
		s.logger.Info("waitlist withdrawn", zap.String("event_id", eventID), zap.String("user_id", userID))
	}
	return outcome, nil
}

// Notify offers a spot to the oldest waiting entrant. The entry keeps its queue slot until it is
// confirmed, withdrawn or the offer expires.
func (s *RegistrationService) Notify(ctx context.Context, actor models.Actor, eventID string) (*dto.WaitlistOffer, error) {
	if !actor.IsOrganizer() {
		return nil, appErrors.ErrForbidden
	}
	var offer *dto.WaitlistOffer
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		event, err := s.lockActiveEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		offer, err = s.offerNext(ctx, tx, event, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(TransitionNotified)
	s.logger.Info("waitlist notified", zap.String("event_id", eventID), zap.String("user_id", offer.UserID),
		zap.String("actor", actor.UserID))
	s.dispatchOffer(ctx, *offer)
	return offer, nil
}

// Confirm converts the user's notified entry into a registration.
func (s *RegistrationService) Confirm(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error) {
	outcome := &dto.RegistrationOutcome{EventID: eventID, UserID: userID, Result: dto.ResultRegistered}
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		event, err := s.lockActiveEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		entry, err := s.waitlist.Find(ctx, tx, eventID, userID)
		if err != nil {
			if isNoRows(err) {
				return appErrors.ErrNoNotificationFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
		}
		if entry.Status != models.WaitlistNotified {
			return appErrors.ErrNoNotificationFound
		}
		full, err := s.capacity.IsFull(ctx, tx, event)
		if err != nil {
			return err
		}
		if full {
			return appErrors.ErrEventFull
		}
		reg, err := s.createRegistration(ctx, tx, eventID, userID, s.now().UTC())
		if err != nil {
			return err
		}
		if err := s.waitlist.Delete(ctx, tx, entry.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove waitlist entry")
		}
		outcome.RegistrationID = reg.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.capacity.Invalidate(ctx, eventID)
	s.metrics.RecordTransition(TransitionConfirmed)
	s.logger.Info("waitlist offer confirmed", zap.String("event_id", eventID), zap.String("user_id", userID))
	return outcome, nil
}

// Complete marks the user's registration as completed once the event has happened.
func (s *RegistrationService) Complete(ctx context.Context, actor models.Actor, eventID, userID string) error {
	if !actor.IsOrganizer() {
		return appErrors.ErrForbidden
	}
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := s.lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		done, err := s.registrations.Complete(ctx, tx, eventID, userID, s.now().UTC())
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete registration")
		}
		if !done {
			return appErrors.Clone(appErrors.ErrNotFound, "no active registration for this user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.capacity.Invalidate(ctx, eventID)
	s.metrics.RecordTransition(TransitionCompleted)
	s.logger.Info("registration completed", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

// ExpireOffers returns notified entries older than the offer TTL to the tail of their queue
// and offers the freed turn to the next waiting entrant.
func (s *RegistrationService) ExpireOffers(ctx context.Context) (*dto.ExpirySummary, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.offerTTL)
	summary := &dto.ExpirySummary{Reoffers: []dto.WaitlistOffer{}}

	eventIDs, err := s.waitlist.EventsWithExpiredOffers(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan expired offers")
	}

	for _, eventID := range eventIDs {
		var (
			expired  int
			reoffers []dto.WaitlistOffer
		)
		err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
			expired, reoffers = 0, nil
			event, err := s.lockEvent(ctx, tx, eventID)
			if err != nil {
				return err
			}
			entries, err := s.waitlist.ListExpiredOffers(ctx, tx, eventID, cutoff)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired offers")
			}
			for _, entry := range entries {
				if err := s.waitlist.Requeue(ctx, tx, entry.ID); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to requeue entry")
				}
			}
			expired = len(entries)
			if event.IsDeleted {
				return nil
			}
			for range entries {
				offer, err := s.offerNext(ctx, tx, event, now)
				if err != nil {
					if appErrors.HasCode(err, appErrors.ErrNoWaitlistEntries.Code) {
						break
					}
					return err
				}
				reoffers = append(reoffers, *offer)
			}
			return nil
		})
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrEventNotFound.Code) {
				continue
			}
			s.logger.Warn("offer expiry failed", zap.String("event_id", eventID), zap.Error(err))
			continue
		}

		summary.Expired += expired
		summary.Reoffers = append(summary.Reoffers, reoffers...)
		s.metrics.RecordExpiredOffers(expired)
		for _, offer := range reoffers {
			s.metrics.RecordTransition(TransitionNotified)
			s.dispatchOffer(ctx, offer)
		}
		s.logger.Info("waitlist offers expired", zap.String("event_id", eventID), zap.Int("expired", expired),
			zap.Int("reoffered", len(reoffers)))
	}
	return summary, nil
}

func (s *RegistrationService) offerNext(ctx context.Context, tx sqlx.ExtContext, event *models.Event, now time.Time) (*dto.WaitlistOffer, error) {
	head, err := s.waitlist.OldestForUpdate(ctx, tx, event.ID, models.WaitlistWaiting)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrNoWaitlistEntries
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist head")
	}
	if err := s.waitlist.MarkNotified(ctx, tx, head.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark entry notified")
	}
	return &dto.WaitlistOffer{
		EventID:    event.ID,
		EventName:  event.ActivityGroupName,
		EventDate:  event.EventDate,
		EntryID:    head.ID,
		UserID:     head.UserID,
		NotifiedAt: now,
		ExpiresAt:  now.Add(s.offerTTL),
	}, nil
}

func (s *RegistrationService) promote(ctx context.Context, tx sqlx.ExtContext, entry *models.WaitlistEntry) error {
	if _, err := s.createRegistration(ctx, tx, entry.EventID, entry.UserID, s.now().UTC()); err != nil {
		return err
	}
	if err := s.waitlist.Delete(ctx, tx, entry.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove promoted entry")
	}
	return nil
}

func (s *RegistrationService) createRegistration(ctx context.Context, tx sqlx.ExtContext, eventID, userID string, at time.Time) (*models.Registration, error) {
	reg := &models.Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		Status:    models.RegistrationRegistered,
		CreatedAt: at,
	}
	if err := s.registrations.Create(ctx, tx, reg); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.ErrAlreadyRegistered
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	return reg, nil
}

func (s *RegistrationService) lockEvent(ctx context.Context, tx sqlx.ExtContext, eventID string) (*models.Event, error) {
	event, err := s.events.LockByID(ctx, tx, eventID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock event")
	}
	return event, nil
}

func (s *RegistrationService) lockActiveEvent(ctx context.Context, tx sqlx.ExtContext, eventID string) (*models.Event, error) {
	event, err := s.lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsDeleted {
		return nil, appErrors.ErrEventNotFound
	}
	return event, nil
}

func (s *RegistrationService) dispatchOffer(ctx context.Context, offer dto.WaitlistOffer) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchOffer(ctx, offer); err != nil {
		s.logger.Warn("offer dispatch failed", zap.String("event_id", offer.EventID), zap.String("user_id", offer.UserID), zap.Error(err))
	}
}

func (s *RegistrationService) dispatchPromotion(ctx context.Context, eventID, userID string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchPromotion(ctx, eventID, userID); err != nil {
		s.logger.Warn("promotion dispatch failed", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
	}
}
