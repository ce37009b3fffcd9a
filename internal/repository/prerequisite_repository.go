package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/models"
)

const prerequisiteColumns = `p.id, p.event_id, p.prerequisite_event_id, p.minimum_performance,
	p.qualification_period, p.is_waiver_allowed, p.created_at`

// PrerequisiteRepository persists prerequisite edges.
type PrerequisiteRepository struct {
	db *sqlx.DB
}

// NewPrerequisiteRepository constructs the repository.
func NewPrerequisiteRepository(db *sqlx.DB) *PrerequisiteRepository {
	return &PrerequisiteRepository{db: db}
}

// Create inserts an edge. A duplicate pair surfaces as a unique violation.
func (r *PrerequisiteRepository) Create(ctx context.Context, exec sqlx.ExtContext, prereq *models.Prerequisite) error {
	const query = `INSERT INTO prerequisites (id, event_id, prerequisite_event_id, minimum_performance,
	qualification_period, is_waiver_allowed, created_at)
VALUES (:id, :event_id, :prerequisite_event_id, :minimum_performance, :qualification_period, :is_waiver_allowed, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, prereq); err != nil {
		return fmt.Errorf("insert prerequisite: %w", err)
	}
	return nil
}

// Exists reports whether the ordered pair is already present.
func (r *PrerequisiteRepository) Exists(ctx context.Context, exec sqlx.ExtContext, eventID, prerequisiteEventID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM prerequisites WHERE event_id = $1 AND prerequisite_event_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &exists, query, eventID, prerequisiteEventID); err != nil {
		return false, fmt.Errorf("check prerequisite: %w", err)
	}
	return exists, nil
}

// Delete removes an edge by id and reports whether it existed.
func (r *PrerequisiteRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM prerequisites WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete prerequisite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRequirements returns the edges the event depends on, joined with each required event.
func (r *PrerequisiteRepository) ListRequirements(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	query := `SELECT ` + prerequisiteColumns + `, e.activity_group_name AS related_event_name, e.event_date AS related_event_date
FROM prerequisites p
JOIN events e ON e.id = p.prerequisite_event_id
WHERE p.event_id = $1
ORDER BY p.created_at ASC, p.id ASC`
	var edges []models.PrerequisiteEdge
	if err := r.db.SelectContext(ctx, &edges, query, eventID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return edges, nil
}

// ListDependents returns the edges of events that require eventID, joined with each dependent event.
func (r *PrerequisiteRepository) ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	query := `SELECT ` + prerequisiteColumns + `, e.activity_group_name AS related_event_name, e.event_date AS related_event_date
FROM prerequisites p
JOIN events e ON e.id = p.event_id
WHERE p.prerequisite_event_id = $1
ORDER BY e.event_date ASC, p.id ASC`
	var edges []models.PrerequisiteEdge
	if err := r.db.SelectContext(ctx, &edges, query, eventID); err != nil {
		return nil, fmt.Errorf("list dependent events: %w", err)
	}
	return edges, nil
}

// DeleteByEvent removes every edge where the event is either source or target.
func (r *PrerequisiteRepository) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	const query = `DELETE FROM prerequisites WHERE event_id = $1 OR prerequisite_event_id = $1`
	res, err := executor(r.db, exec).ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event prerequisites: %w", err)
	}
	return res.RowsAffected()
}
