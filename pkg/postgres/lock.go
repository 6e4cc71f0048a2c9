package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrLocked is returned by AcquireLock when another session holds the lock.
var ErrLocked = errors.New("advisory lock is held by another session")

// AcquireLock takes the session-level advisory lock key on a dedicated
// connection. The lock is held until release is called or the connection dies.
func AcquireLock(ctx context.Context, db *sqlx.DB, key int64) (release func() error, err error) {
	const op = "postgres.AcquireLock"

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get connection: %w", op, err)
	}

	var locked bool
	if err := conn.QueryRowxContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: failed to try lock: %w", op, err)
	}

	if !locked {
		conn.Close()
		return nil, fmt.Errorf("%s: key %d: %w", op, key, ErrLocked)
	}

	return func() error {
		defer conn.Close()

		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			return fmt.Errorf("%s: failed to unlock: %w", op, err)
		}

		return nil
	}, nil
}
