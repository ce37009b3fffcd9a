package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/database"
)

// unitOfWork runs fn in one transaction; see database.UnitOfWork.
type unitOfWork interface {
	Do(ctx context.Context, fn database.TxFunc) error
}

type eventStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
	Update(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error)
}

type registrationStore interface {
	FindActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.Registration, error)
	CountActive(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error
	DeleteActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error)
	Complete(ctx context.Context, exec sqlx.ExtContext, eventID, userID string, at time.Time) (bool, error)
	ListActive(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Registration, error)
	DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
	ListQualifying(ctx context.Context, userID string, eventIDs []string) ([]models.QualifyingRecord, error)
}

type waitlistStore interface {
	Find(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.WaitlistEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) error
	Position(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) (int, error)
	Count(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error)
	OldestForUpdate(ctx context.Context, exec sqlx.ExtContext, eventID string, status models.WaitlistStatus) (*models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	Requeue(ctx context.Context, exec sqlx.ExtContext, id string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteByUser(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error)
	DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
	List(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.WaitlistEntry, error)
	ListExpiredOffers(ctx context.Context, exec sqlx.ExtContext, eventID string, cutoff time.Time) ([]models.WaitlistEntry, error)
	EventsWithExpiredOffers(ctx context.Context, cutoff time.Time) ([]string, error)
}

type prerequisiteStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, prereq *models.Prerequisite) error
	Exists(ctx context.Context, exec sqlx.ExtContext, eventID, prerequisiteEventID string) (bool, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	ListRequirements(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error)
	ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error)
	DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
}

type sessionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	ListByEvent(ctx context.Context, eventID string) ([]models.Session, error)
	DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
}

// isNoRows treats a key Postgres cannot parse, such as a malformed UUID, as a missing row.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || database.IsInvalidTextRepresentation(err)
}
