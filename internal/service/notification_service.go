package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/internal/repository"
	"github.com/noah-isme/community-events-api/pkg/jobs"
)

// Notification job types.
const (
	JobWaitlistOffer     = "waitlist.offer"
	JobWaitlistPromotion = "waitlist.promoted"
	JobEventReminder     = "event.reminder"
)

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type outboxWriter interface {
	Push(ctx context.Context, msg repository.OutboxMessage) error
}

type reminderMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type reminderSource interface {
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

type activeRegistrationLister interface {
	ListActive(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Registration, error)
}

// PromotionNotice is the payload of a promotion job.
type PromotionNotice struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// ReminderNotice is the payload of a reminder job.
type ReminderNotice struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	EventDate time.Time `json:"event_date"`
	UserID    string    `json:"user_id"`
}

// NotificationService turns committed outcomes into jobs and delivers jobs to the outbox.
// Message delivery itself happens outside this service.
type NotificationService struct {
	queue         jobEnqueuer
	outbox        outboxWriter
	marker        reminderMarker
	events        reminderSource
	registrations activeRegistrationLister
	metrics       *MetricsService
	logger        *zap.Logger
	window        time.Duration
	now           func() time.Time
}

// NewNotificationService builds a NotificationService.
func NewNotificationService(
	queue jobEnqueuer,
	outbox outboxWriter,
	marker reminderMarker,
	events reminderSource,
	registrations activeRegistrationLister,
	metrics *MetricsService,
	logger *zap.Logger,
	window time.Duration,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &NotificationService{
		queue:         queue,
		outbox:        outbox,
		marker:        marker,
		events:        events,
		registrations: registrations,
		metrics:       metrics,
		logger:        logger,
		window:        window,
		now:           time.Now,
	}
}

// DispatchOffer queues a waitlist offer.
func (s *NotificationService) DispatchOffer(ctx context.Context, offer dto.WaitlistOffer) error {
	return s.queue.Enqueue(ctx, jobs.Job{Type: JobWaitlistOffer, Payload: offer})
}

// DispatchPromotion queues a promotion notice.
func (s *NotificationService) DispatchPromotion(ctx context.Context, eventID, userID string) error {
	return s.queue.Enqueue(ctx, jobs.Job{Type: JobWaitlistPromotion, Payload: PromotionNotice{EventID: eventID, UserID: userID}})
}

// SendEventReminders queues one reminder per registered user of every event starting within the
// reminder window. Each (event, user) pair is reminded at most once per window.
func (s *NotificationService) SendEventReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	events, err := s.events.ListStartingBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("list upcoming events: %w", err)
	}

	sent := 0
	for _, event := range events {
		regs, err := s.registrations.ListActive(ctx, nil, event.ID)
		if err != nil {
			return sent, fmt.Errorf("list registrations for %s: %w", event.ID, err)
		}
		for _, reg := range regs {
			if s.marker != nil {
				first, err := s.marker.MarkOnce(ctx, "reminder:"+event.ID+":"+reg.UserID, s.window)
				if err != nil {
					return sent, fmt.Errorf("mark reminder: %w", err)
				}
				if !first {
					continue
				}
			}
			notice := ReminderNotice{EventID: event.ID, EventName: event.ActivityGroupName, EventDate: event.EventDate, UserID: reg.UserID}
			if err := s.queue.Enqueue(ctx, jobs.Job{Type: JobEventReminder, Payload: notice}); err != nil {
				return sent, err
			}
			sent++
		}
	}
	if sent > 0 {
		s.logger.Info("event reminders queued", zap.Int("count", sent))
	}
	return sent, nil
}

// Deliver is the queue handler: it writes the job to the outbox as a JSON envelope.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", job.Type, err)
	}
	msg := repository.OutboxMessage{
		ID:        job.ID,
		Type:      job.Type,
		Payload:   payload,
		Attempt:   job.Attempt,
		CreatedAt: job.Enqueued,
	}
	switch p := job.Payload.(type) {
	case dto.WaitlistOffer:
		msg.EventID, msg.UserID = p.EventID, p.UserID
	case PromotionNotice:
		msg.EventID, msg.UserID = p.EventID, p.UserID
	case ReminderNotice:
		msg.EventID, msg.UserID = p.EventID, p.UserID
	}
	return s.outbox.Push(ctx, msg)
}

// RecordResult is the queue result hook.
func (s *NotificationService) RecordResult(job jobs.Job, err error) {
	s.metrics.RecordNotification(job.Type, err)
	if err != nil {
		s.logger.Error("notification not delivered", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
	}
}
