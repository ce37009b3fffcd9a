package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/community-events-api/internal/models"
)

// RegistrationRepository persists registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindActive returns the user's registered row for the event, or sql.ErrNoRows.
func (r *RegistrationRepository) FindActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.Registration, error) {
	const query = `SELECT id, event_id, user_id, status, created_at, completed_at FROM registrations
WHERE event_id = $1 AND user_id = $2 AND status = 'registered'`
	var reg models.Registration
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &reg, query, eventID, userID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// CountActive counts registered rows for the event.
func (r *RegistrationRepository) CountActive(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'`
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// Create inserts a registration.
func (r *RegistrationRepository) Create(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error {
	const query = `INSERT INTO registrations (id, event_id, user_id, status, created_at, completed_at)
VALUES (:id, :event_id, :user_id, :status, :created_at, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, reg); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// DeleteActive removes the user's registered row. It reports whether a row was removed.
func (r *RegistrationRepository) DeleteActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error) {
	const query = `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2 AND status = 'registered'`
	res, err := executor(r.db, exec).ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Complete moves the user's registered row to completed.
func (r *RegistrationRepository) Complete(ctx context.Context, exec sqlx.ExtContext, eventID, userID string, at time.Time) (bool, error) {
	const query = `UPDATE registrations SET status = 'completed', completed_at = $3
WHERE event_id = $1 AND user_id = $2 AND status = 'registered'`
	res, err := executor(r.db, exec).ExecContext(ctx, query, eventID, userID, at)
	if err != nil {
		return false, fmt.Errorf("complete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListActive returns registered rows in registration order.
func (r *RegistrationRepository) ListActive(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Registration, error) {
	const query = `SELECT id, event_id, user_id, status, created_at, completed_at FROM registrations
WHERE event_id = $1 AND status = 'registered' ORDER BY created_at ASC, id ASC`
	var regs []models.Registration
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &regs, query, eventID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// DeleteByEvent removes every registration of the event.
func (r *RegistrationRepository) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event registrations: %w", err)
	}
	return res.RowsAffected()
}

// ListQualifying returns the user's completed registrations on the given events paired with each of
// the event's sessions.
func (r *RegistrationRepository) ListQualifying(ctx context.Context, userID string, eventIDs []string) ([]models.QualifyingRecord, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT r.event_id, r.status, s.attendance, s.session_date
FROM registrations r
JOIN sessions s ON s.event_id = r.event_id
WHERE r.user_id = $1 AND r.event_id = ANY($2) AND r.status = 'completed'`
	var records []models.QualifyingRecord
	if err := r.db.SelectContext(ctx, &records, query, userID, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("list qualifying records: %w", err)
	}
	return records, nil
}
