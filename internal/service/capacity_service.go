package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

const capacityCachePrefix = "capacity:"

// CapacityService computes occupancy. Decisions always read the authoritative
// registration set; only Snapshot consults the cache.
type CapacityService struct {
	uow           unitOfWork
	events        eventStore
	registrations registrationStore
	waitlist      waitlistStore
	cache         *CacheService
	ttl           time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewCapacityService builds a CapacityService. cache may be nil.
func NewCapacityService(uow unitOfWork, events eventStore, registrations registrationStore, waitlist waitlistStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{
		uow:           uow,
		events:        events,
		registrations: registrations,
		waitlist:      waitlist,
		cache:         cache,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisteredCount returns the number of registered rows for the event.
func (s *CapacityService) RegisteredCount(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	count, err := s.registrations.CountActive(ctx, exec, eventID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	return count, nil
}

// IsFull reports whether the event has no open seat. Unlimited events are never full.
func (s *CapacityService) IsFull(ctx context.Context, exec sqlx.ExtContext, event *models.Event) (bool, error) {
	if event.Unlimited() {
		return false, nil
	}
	count, err := s.RegisteredCount(ctx, exec, event.ID)
	if err != nil {
		return false, err
	}
	return isFull(event.MaxParticipants, count), nil
}

func isFull(max *int, registered int) bool {
	return max != nil && registered >= *max
}

// Snapshot returns the occupancy of an active event, served from cache when fresh.
// The boolean reports a cache hit.
//
// A miss is counted and cached while holding the event lock. Transitions
// invalidate after they commit, so a snapshot cached here is either current
// or dropped by the next invalidation.
func (s *CapacityService) Snapshot(ctx context.Context, eventID string) (*dto.CapacitySnapshot, bool, error) {
	key := capacityCachePrefix + eventID
	var cached dto.CapacitySnapshot
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	var snapshot *dto.CapacitySnapshot
	err := s.uow.Do(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		event, err := s.events.LockByID(ctx, tx, eventID)
		if err != nil {
			if isNoRows(err) {
				return appErrors.ErrEventNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock event")
		}
		if event.IsDeleted {
			return appErrors.ErrEventNotFound
		}
		registered, err := s.RegisteredCount(ctx, tx, eventID)
		if err != nil {
			return err
		}
		waitlisted, err := s.waitlist.Count(ctx, tx, eventID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waitlist")
		}

		snapshot = &dto.CapacitySnapshot{
			EventID:         eventID,
			MaxParticipants: event.MaxParticipants,
			Registered:      registered,
			Waitlisted:      waitlisted,
			Full:            isFull(event.MaxParticipants, registered),
			GeneratedAt:     s.now().UTC(),
		}
		if event.MaxParticipants != nil {
			available := *event.MaxParticipants - registered
			if available < 0 {
				available = 0
			}
			snapshot.Available = &available
		}
		if err := s.cache.Set(ctx, key, snapshot, s.ttl); err != nil {
			s.logger.Warn("capacity cache write failed", zap.String("event_id", eventID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return snapshot, false, nil
}

// Invalidate drops the cached snapshot after a committed transition.
func (s *CapacityService) Invalidate(ctx context.Context, eventID string) {
	if err := s.cache.Delete(ctx, capacityCachePrefix+eventID); err != nil {
		s.logger.Warn("capacity cache invalidation failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
