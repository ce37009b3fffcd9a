package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OutboxMessage is the envelope consumed by the external delivery service.
type OutboxMessage struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	EventID   string          `json:"event_id"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// OutboxRepository appends notification envelopes to a Redis list.
type OutboxRepository struct {
	client redis.UniversalClient
	key    string
}

// NewOutboxRepository constructs the repository writing to key.
func NewOutboxRepository(client redis.UniversalClient, key string) *OutboxRepository {
	if key == "" {
		key = "notifications:outbox"
	}
	return &OutboxRepository{client: client, key: key}
}

// Push appends msg to the tail of the outbox list.
func (r *OutboxRepository) Push(ctx context.Context, msg OutboxMessage) error {
	if r.client == nil {
		return fmt.Errorf("outbox %s: redis client not configured", r.key)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", r.key, err)
	}
	return nil
}

// Len reports the number of undelivered envelopes.
func (r *OutboxRepository) Len(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", r.key, err)
	}
	return n, nil
}

// MarkOnce sets key with ttl only if absent and reports whether this call set it.
func (r *OutboxRepository) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}
