package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

func TestRegisterAdmitsUntilFullThenWaitlists(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()

	first, err := e.registrations.Register(ctx, "evt-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, dto.ResultRegistered, first.Result)
	assert.NotEmpty(t, first.RegistrationID)

	second, err := e.registrations.Register(ctx, "evt-1", "u2")
	require.NoError(t, err)
	assert.Equal(t, dto.ResultWaitlisted, second.Result)
	assert.Equal(t, 1, second.WaitlistPosition)

	third, err := e.registrations.Register(ctx, "evt-1", "u3")
	require.NoError(t, err)
	assert.Equal(t, 2, third.WaitlistPosition)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()

	_, err := e.registrations.Register(ctx, "evt-1", "u1")
	require.NoError(t, err)
	_, err = e.registrations.Register(ctx, "evt-1", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyRegistered.Code))

	_, err = e.registrations.Register(ctx, "evt-1", "u2")
	require.NoError(t, err)
	_, err = e.registrations.Register(ctx, "evt-1", "u2")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyWaitlisted.Code))
	assert.Equal(t, []string{"u2"}, e.db.waitlistUsers("evt-1"))
}

func TestRegisterUnlimitedNeverWaitlists(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", nil)
	for i := 0; i < 50; i++ {
		out, err := e.registrations.Register(context.Background(), "evt-1", fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		assert.Equal(t, dto.ResultRegistered, out.Result)
	}
	assert.Len(t, e.db.activeRegistrations("evt-1"), 50)
}

func TestRegisterZeroCapacityWaitlistsEveryone(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(0))
	out, err := e.registrations.Register(context.Background(), "evt-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, dto.ResultWaitlisted, out.Result)
}

func TestRegisterRejectsMissingDeletedAndClosedEvents(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.registrations.Register(ctx, "missing", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))

	archived := e.seedEvent("archived", nil)
	archived.IsDeleted = true
	e.db.addEvent(archived)
	_, err = e.registrations.Register(ctx, "archived", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))

	closed := e.seedEvent("closed", nil)
	deadline := e.clock.Now().Add(-time.Hour)
	closed.RegistrationDeadline = &deadline
	e.db.addEvent(closed)
	_, err = e.registrations.Register(ctx, "closed", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRegistrationClosed.Code))

	_, err = e.registrations.Register(ctx, "closed", "")
	assert.Equal(t, appErrors.ErrUnauthorized, err)
}

func TestMalformedEventIDIsNotFound(t *testing.T) {
	e := newEngine()
	e.db.fail["events.FindByID"] = fmt.Errorf("find event: %w", &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
	ctx := context.Background()

	_, err := e.registrations.Register(ctx, "not-a-uuid", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))

	_, err = e.registrations.Cancel(ctx, "not-a-uuid", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))

	_, err = e.events.Get(ctx, "not-a-uuid")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))

	_, _, err = e.capacity.Snapshot(ctx, "not-a-uuid")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))
}

func TestConcurrentRegistrationsNeverExceedCapacity(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(5))

	const callers = 40
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		registered int
		waitlisted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.registrations.Register(context.Background(), "evt-1", fmt.Sprintf("u%d", i))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if out.Result == dto.ResultRegistered {
				registered++
			} else {
				waitlisted++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, registered)
	assert.Equal(t, callers-5, waitlisted)
	assert.Len(t, e.db.activeRegistrations("evt-1"), 5)
	assert.Len(t, e.db.waitlistUsers("evt-1"), callers-5)
	assert.LessOrEqual(t, e.db.peakActive("evt-1"), 5)
}

func TestConcurrentCancellationsPromoteEachEntrantOnce(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(10))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := e.registrations.Register(ctx, "evt-1", fmt.Sprintf("holder%d", i))
		require.NoError(t, err)
	}
	var queued []string
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("w%02d", i)
		out, err := e.registrations.Register(ctx, "evt-1", u)
		require.NoError(t, err)
		require.Equal(t, dto.ResultWaitlisted, out.Result)
		queued = append(queued, u)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.registrations.Cancel(ctx, "evt-1", fmt.Sprintf("holder%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	e.dispatcher.mu.Lock()
	promoted := append([]string(nil), e.dispatcher.promotions...)
	e.dispatcher.mu.Unlock()

	assert.ElementsMatch(t, queued[:10], promoted)
	assert.ElementsMatch(t, queued[:10], e.db.activeRegistrations("evt-1"))
	assert.Equal(t, queued[10:], e.db.waitlistUsers("evt-1"))
	assert.LessOrEqual(t, e.db.peakActive("evt-1"), 10)
}

func TestConcurrentRegisterAndCancelKeepsCapacityAndQueue(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.registrations.Register(ctx, "evt-1", fmt.Sprintf("holder%d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.registrations.Cancel(ctx, "evt-1", fmt.Sprintf("holder%d", i))
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.registrations.Register(ctx, "evt-1", fmt.Sprintf("n%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	active := e.db.activeRegistrations("evt-1")
	waiting := e.db.waitlistUsers("evt-1")
	assert.Len(t, active, 5)
	assert.Len(t, waiting, 15)
	assert.LessOrEqual(t, e.db.peakActive("evt-1"), 5)
	for _, u := range active {
		assert.NotContains(t, waiting, u)
		assert.NotContains(t, u, "holder")
	}

	e.dispatcher.mu.Lock()
	defer e.dispatcher.mu.Unlock()
	seen := map[string]bool{}
	for _, u := range e.dispatcher.promotions {
		assert.False(t, seen[u], "user %s promoted twice", u)
		seen[u] = true
		assert.Contains(t, active, u)
	}
}

func TestCancelPromotesWaitlistInArrivalOrder(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()

	for _, u := range []string{"holder", "a", "b", "c"} {
		_, err := e.registrations.Register(ctx, "evt-1", u)
		require.NoError(t, err)
	}

	var promoted []string
	leaving := "holder"
	for i := 0; i < 3; i++ {
		out, err := e.registrations.Cancel(ctx, "evt-1", leaving)
		require.NoError(t, err)
		require.True(t, out.Cancelled)
		require.NotNil(t, out.PromotedUserID)
		promoted = append(promoted, *out.PromotedUserID)
		leaving = *out.PromotedUserID
	}

	assert.Equal(t, []string{"a", "b", "c"}, promoted)
	assert.Equal(t, []string{"a", "b", "c"}, e.dispatcher.promotions)
	assert.Empty(t, e.db.waitlistUsers("evt-1"))
	assert.Equal(t, []string{"c"}, e.db.activeRegistrations("evt-1"))
}

func TestCancelWithoutRegistrationIsNoop(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, err := e.registrations.Register(ctx, "evt-1", "u1")
	require.NoError(t, err)
	_, err = e.registrations.Register(ctx, "evt-1", "u2")
	require.NoError(t, err)

	out, err := e.registrations.Cancel(ctx, "evt-1", "stranger")
	require.NoError(t, err)
	assert.False(t, out.Cancelled)
	assert.Nil(t, out.PromotedUserID)
	assert.Equal(t, []string{"u2"}, e.db.waitlistUsers("evt-1"))

	_, err = e.registrations.Cancel(ctx, "missing", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventNotFound.Code))
}

func TestCancelOnArchivedEventDoesNotPromote(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")
	require.NoError(t, e.events.SoftDelete(ctx, organizer, "evt-1"))

	out, err := e.registrations.Cancel(ctx, "evt-1", "u1")
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Nil(t, out.PromotedUserID)
	assert.Equal(t, []string{"u2"}, e.db.waitlistUsers("evt-1"))
}

func TestCancelPromotesNotifiedHeadToo(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")
	_, _ = e.registrations.Register(ctx, "evt-1", "u3")

	offer, err := e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "u2", offer.UserID)

	out, err := e.registrations.Cancel(ctx, "evt-1", "u1")
	require.NoError(t, err)
	require.NotNil(t, out.PromotedUserID)
	assert.Equal(t, "u2", *out.PromotedUserID)
}

func TestWithdrawIsIdempotent(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(0))
	ctx := context.Background()
	_, err := e.registrations.Register(ctx, "evt-1", "u1")
	require.NoError(t, err)

	out, err := e.registrations.Withdraw(ctx, "evt-1", "u1")
	require.NoError(t, err)
	assert.True(t, out.Withdrawn)

	out, err = e.registrations.Withdraw(ctx, "evt-1", "u1")
	require.NoError(t, err)
	assert.False(t, out.Withdrawn)
	assert.Empty(t, e.db.waitlistUsers("evt-1"))
}

func TestNotifyRequiresOrganizerAndWaitingEntrant(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()

	_, err := e.registrations.Notify(ctx, member, "evt-1")
	assert.Equal(t, appErrors.ErrForbidden, err)

	_, err = e.registrations.Notify(ctx, organizer, "evt-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoWaitlistEntries.Code))

	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")
	_, _ = e.registrations.Register(ctx, "evt-1", "u3")

	offer, err := e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "u2", offer.UserID)
	assert.Equal(t, offer.NotifiedAt.Add(48*time.Hour), offer.ExpiresAt)

	offer, err = e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "u3", offer.UserID, "notified entrants are skipped")

	_, err = e.registrations.Notify(ctx, organizer, "evt-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoWaitlistEntries.Code))
	assert.Equal(t, []string{"u2", "u3"}, e.dispatcher.offers)
}

func TestConfirmRequiresNotification(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")

	_, err := e.registrations.Confirm(ctx, "evt-1", "u2")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoNotificationFound.Code))

	_, err = e.registrations.Confirm(ctx, "evt-1", "nobody")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoNotificationFound.Code))
}

func TestConfirmRejectsWhenNoSeatIsOpen(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")
	_, err := e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)

	_, err = e.registrations.Confirm(ctx, "evt-1", "u2")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEventFull.Code))
	assert.Equal(t, []string{"u1"}, e.db.activeRegistrations("evt-1"))
	assert.Equal(t, []string{"u2"}, e.db.waitlistUsers("evt-1"))
}

func TestConfirmConvertsOfferIntoRegistration(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(2))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")
	_, _ = e.registrations.Register(ctx, "evt-1", "u3")

	// free a seat without triggering promotion by lifting the cap
	limit := 3
	_, err := e.events.Update(ctx, organizer, "evt-1", dto.UpdateEventRequest{MaxParticipants: &limit})
	require.NoError(t, err)

	_, err = e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)
	out, err := e.registrations.Confirm(ctx, "evt-1", "u3")
	require.NoError(t, err)
	assert.Equal(t, dto.ResultRegistered, out.Result)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, e.db.activeRegistrations("evt-1"))
	assert.Empty(t, e.db.waitlistUsers("evt-1"))
}

func TestCompleteMarksRegistration(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", nil)
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")

	assert.Equal(t, appErrors.ErrForbidden, e.registrations.Complete(ctx, member, "evt-1", "u1"))
	require.NoError(t, e.registrations.Complete(ctx, organizer, "evt-1", "u1"))
	assert.Empty(t, e.db.activeRegistrations("evt-1"))

	err := e.registrations.Complete(ctx, organizer, "evt-1", "u1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestExpireOffersRequeuesAndReoffers(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := e.registrations.Register(ctx, "evt-1", u)
		require.NoError(t, err)
	}
	_, err := e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)

	summary, err := e.registrations.ExpireOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Expired, "fresh offers are left alone")

	e.clock.Advance(49 * time.Hour)
	summary, err = e.registrations.ExpireOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	require.Len(t, summary.Reoffers, 1)
	assert.Equal(t, "u3", summary.Reoffers[0].UserID)
	assert.Equal(t, []string{"u3", "u2"}, e.db.waitlistUsers("evt-1"))

	entry, err := memWaitlist{e.db}.Find(ctx, nil, "evt-1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, entry.Status)
	assert.Nil(t, entry.NotifiedAt)
	assert.Equal(t, []string{"u2", "u3"}, e.dispatcher.offers)
}

func TestExpireOffersSkipsReofferOnArchivedEvent(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		_, _ = e.registrations.Register(ctx, "evt-1", u)
	}
	_, err := e.registrations.Notify(ctx, organizer, "evt-1")
	require.NoError(t, err)
	require.NoError(t, e.events.SoftDelete(ctx, organizer, "evt-1"))

	e.clock.Advance(49 * time.Hour)
	summary, err := e.registrations.ExpireOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Empty(t, summary.Reoffers)
}

func TestFailedTransitionLeavesNoPartialState(t *testing.T) {
	e := newEngine()
	e.seedEvent("evt-1", intPtr(1))
	ctx := context.Background()
	_, _ = e.registrations.Register(ctx, "evt-1", "u1")
	_, _ = e.registrations.Register(ctx, "evt-1", "u2")

	e.db.fail["registrations.Create"] = fmt.Errorf("disk full")
	_, err := e.registrations.Cancel(ctx, "evt-1", "u1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))

	assert.Equal(t, []string{"u1"}, e.db.activeRegistrations("evt-1"))
	assert.Equal(t, []string{"u2"}, e.db.waitlistUsers("evt-1"))
}
