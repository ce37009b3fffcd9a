package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/models"
)

// SessionRepository persists event sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	const query = `INSERT INTO sessions (id, event_id, session_date, attendance, created_at)
VALUES (:id, :event_id, :session_date, :attendance, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListByEvent returns sessions ordered by date.
func (r *SessionRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Session, error) {
	const query = `SELECT id, event_id, session_date, attendance, created_at FROM sessions WHERE event_id = $1 ORDER BY session_date ASC, id ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, eventID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByEvent removes every session of the event.
func (r *SessionRepository) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM sessions WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event sessions: %w", err)
	}
	return res.RowsAffected()
}
