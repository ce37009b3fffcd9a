package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/models"
)

const waitlistColumns = `id, seq, event_id, user_id, status, created_at, notified_at`

// WaitlistRepository persists waitlist entries. Queue order is seq ascending; seq and created_at
// are assigned by the database so every instance agrees on it.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Find returns the user's entry for the event, or sql.ErrNoRows.
func (r *WaitlistRepository) Find(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE event_id = $1 AND user_id = $2`
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &entry, query, eventID, userID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts an entry; the database assigns Seq and CreatedAt.
func (r *WaitlistRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) error {
	const query = `INSERT INTO waitlist (id, event_id, user_id, status, created_at, notified_at)
VALUES ($1, $2, $3, $4, NOW(), $5) RETURNING seq, created_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		entry.ID, entry.EventID, entry.UserID, entry.Status, entry.NotifiedAt)
	if err := row.Scan(&entry.Seq, &entry.CreatedAt); err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// Position returns the 1-based queue position of the entry within its event.
func (r *WaitlistRepository) Position(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist WHERE event_id = $1 AND seq <= $2`
	var pos int
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &pos, query, entry.EventID, entry.Seq); err != nil {
		return 0, fmt.Errorf("waitlist position: %w", err)
	}
	return pos, nil
}

// Count returns the number of entries for the event regardless of status.
func (r *WaitlistRepository) Count(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &count, `SELECT COUNT(*) FROM waitlist WHERE event_id = $1`, eventID); err != nil {
		return 0, fmt.Errorf("count waitlist: %w", err)
	}
	return count, nil
}

// OldestForUpdate locks and returns the head of the queue. When status is empty every entry is eligible.
func (r *WaitlistRepository) OldestForUpdate(ctx context.Context, exec sqlx.ExtContext, eventID string, status models.WaitlistStatus) (*models.WaitlistEntry, error) {
	var (
		entry models.WaitlistEntry
		err   error
	)
	if status == "" {
		query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE event_id = $1
ORDER BY seq ASC LIMIT 1 FOR UPDATE`
		err = sqlx.GetContext(ctx, executor(r.db, exec), &entry, query, eventID)
	} else {
		query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE event_id = $1 AND status = $2
ORDER BY seq ASC LIMIT 1 FOR UPDATE`
		err = sqlx.GetContext(ctx, executor(r.db, exec), &entry, query, eventID, status)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkNotified moves an entry to notified.
func (r *WaitlistRepository) MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE waitlist SET status = 'notified', notified_at = $2 WHERE id = $1`
	if _, err := executor(r.db, exec).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark waitlist notified: %w", err)
	}
	return nil
}

// Requeue returns an entry to waiting at the tail of the queue.
func (r *WaitlistRepository) Requeue(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE waitlist SET status = 'waiting', notified_at = NULL, created_at = NOW(),
	seq = nextval(pg_get_serial_sequence('waitlist', 'seq')) WHERE id = $1`
	if _, err := executor(r.db, exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("requeue waitlist entry: %w", err)
	}
	return nil
}

// Delete removes an entry by id.
func (r *WaitlistRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM waitlist WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return nil
}

// DeleteByUser removes the user's entry and reports whether one existed.
func (r *WaitlistRepository) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM waitlist WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("withdraw waitlist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByEvent removes every entry of the event.
func (r *WaitlistRepository) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM waitlist WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event waitlist: %w", err)
	}
	return res.RowsAffected()
}

// List returns the event's queue in FIFO order.
func (r *WaitlistRepository) List(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE event_id = $1 ORDER BY seq ASC`
	var entries []models.WaitlistEntry
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &entries, query, eventID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

// ListExpiredOffers returns notified entries whose offer was made before cutoff.
func (r *WaitlistRepository) ListExpiredOffers(ctx context.Context, exec sqlx.ExtContext, eventID string, cutoff time.Time) ([]models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist
WHERE event_id = $1 AND status = 'notified' AND notified_at < $2 ORDER BY notified_at ASC, seq ASC`
	var entries []models.WaitlistEntry
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &entries, query, eventID, cutoff); err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	return entries, nil
}

// EventsWithExpiredOffers returns the distinct events holding offers made before cutoff.
func (r *WaitlistRepository) EventsWithExpiredOffers(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `SELECT DISTINCT event_id FROM waitlist WHERE status = 'notified' AND notified_at < $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, cutoff); err != nil {
		return nil, fmt.Errorf("list events with expired offers: %w", err)
	}
	return ids, nil
}
