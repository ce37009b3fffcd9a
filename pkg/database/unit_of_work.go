package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TxFunc is the body of a unit of work. Every repository call inside it must use tx.
type TxFunc func(ctx context.Context, tx sqlx.ExtContext) error

// TxBeginner opens transactions; satisfied by *sqlx.DB.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// UnitOfWork owns one transaction per call to Do.
type UnitOfWork struct {
	db      TxBeginner
	timeout time.Duration
	opts    *sql.TxOptions
}

// NewUnitOfWork constructs a UnitOfWork. A positive timeout bounds each transaction.
func NewUnitOfWork(db TxBeginner, timeout time.Duration) *UnitOfWork {
	return &UnitOfWork{db: db, timeout: timeout, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// Do runs fn in a transaction. The transaction commits only when fn returns nil;
// errors, panics and context cancellation roll it back.
func (u *UnitOfWork) Do(ctx context.Context, fn TxFunc) (err error) {
	if u == nil || u.db == nil {
		return errors.New("unit of work has no database")
	}
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	tx, err := u.db.BeginTxx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// IsInvalidTextRepresentation reports whether Postgres rejected a value that
// does not parse as the column type, such as a malformed UUID.
func IsInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "22P02"
	}
	return false
}
