package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLockKey int64 = 42

func setupMockDB(t testing.TB) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() {
		db.Close()
	})

	return db, mock
}

func TestAcquireLock(t *testing.T) {
	t.Run("held by another session", func(t *testing.T) {
		db, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WithArgs(testLockKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

		release, err := AcquireLock(context.Background(), db, testLockKey)

		assert.ErrorIs(t, err, ErrLocked)
		assert.Nil(t, release)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WithArgs(testLockKey).
			WillReturnError(errors.New("connection reset"))

		release, err := AcquireLock(context.Background(), db, testLockKey)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrLocked)
		assert.Nil(t, release)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("acquire and release", func(t *testing.T) {
		db, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WithArgs(testLockKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
		mock.ExpectExec(`SELECT pg_advisory_unlock`).
			WithArgs(testLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))

		release, err := AcquireLock(context.Background(), db, testLockKey)
		require.NoError(t, err)

		assert.NoError(t, release())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
