package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/models"
)

const eventColumns = `id, activity_group_name, event_date, max_participants, cost, registration_required,
	registration_deadline, location_id, created_by, is_deleted, created_at, updated_at`

// EventRepository persists events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	const query = `INSERT INTO events (id, activity_group_name, event_date, max_participants, cost, registration_required,
	registration_deadline, location_id, created_by, is_deleted, created_at, updated_at)
VALUES (:id, :activity_group_name, :event_date, :max_participants, :cost, :registration_required,
	:registration_deadline, :location_id, :created_by, :is_deleted, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// FindByID returns the event including soft-deleted rows. Missing rows yield sql.ErrNoRows.
func (r *EventRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	var event models.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// LockByID reads the event row with FOR UPDATE, serialising writers on the same event.
// Must run inside a transaction.
func (r *EventRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	var event models.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns active events ordered by date with the total count for pagination.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE is_deleted = FALSE")
	args := []interface{}{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		fmt.Fprintf(&where, " AND LOWER(activity_group_name) LIKE $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&where, " AND event_date >= $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events`+where.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY event_date ASC, id ASC LIMIT $%d OFFSET $%d`,
		eventColumns, where.String(), len(args)-1, len(args))

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// ListStartingBetween returns active events whose date falls in [from, to).
func (r *EventRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE is_deleted = FALSE AND event_date >= $1 AND event_date < $2 ORDER BY event_date ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// Update writes every mutable column of the event.
func (r *EventRepository) Update(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	const query = `UPDATE events SET activity_group_name = :activity_group_name, event_date = :event_date,
	max_participants = :max_participants, cost = :cost, registration_required = :registration_required,
	registration_deadline = :registration_deadline, location_id = :location_id, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// SoftDelete flags the event as deleted.
func (r *EventRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE events SET is_deleted = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := executor(r.db, exec).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("soft delete event: %w", err)
	}
	return nil
}

// Delete removes the event row. Dependents must already be gone.
func (r *EventRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	return res.RowsAffected()
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
