package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestUnitOfWorkCommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUnitOfWork(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(ctx context.Context, tx sqlx.ExtContext) error {
		_, err := tx.ExecContext(ctx, "UPDATE events SET is_deleted = TRUE")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWorkRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUnitOfWork(db, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := uow.Do(context.Background(), func(context.Context, sqlx.ExtContext) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWorkRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUnitOfWork(db, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = uow.Do(context.Background(), func(context.Context, sqlx.ExtContext) error { panic("kaboom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWorkBeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUnitOfWork(db, 0)

	mock.ExpectBegin().WillReturnError(errors.New("no connections"))

	called := false
	err := uow.Do(context.Background(), func(context.Context, sqlx.ExtContext) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestIsInvalidTextRepresentation(t *testing.T) {
	assert.True(t, IsInvalidTextRepresentation(&pq.Error{Code: "22P02"}))
	assert.True(t, IsInvalidTextRepresentation(fmt.Errorf("find event: %w", &pq.Error{Code: "22P02"})))
	assert.False(t, IsInvalidTextRepresentation(&pq.Error{Code: "23505"}))
	assert.False(t, IsInvalidTextRepresentation(errors.New("plain")))
}
