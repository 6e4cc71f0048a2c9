// Package postgres provides a kv.Store backed by a single PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/surl/internal/kv"
)

const (
	getQuery = `SELECT value FROM kv WHERE namespace = $1 AND key = $2`
	putQuery = `INSERT INTO kv(namespace, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`
	insertQuery = `INSERT INTO kv(namespace, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO NOTHING`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// write upserts the entry, or inserts it when its namespace is write-once.
func write(ctx context.Context, ex execer, e kv.Entry) error {
	value := e.Value
	if value == nil {
		value = []byte{}
	}

	if !kv.WriteOnce(e.Namespace) {
		if _, err := ex.ExecContext(ctx, putQuery, string(e.Namespace), e.Key, value); err != nil {
			return fmt.Errorf("failed to upsert into kv table: %w", err)
		}
		return nil
	}

	res, err := ex.ExecContext(ctx, insertQuery, string(e.Namespace), e.Key, value)
	if err != nil {
		return fmt.Errorf("failed to insert into kv table: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%q in %q: %w", e.Key, e.Namespace, kv.ErrKeyExists)
	}

	return nil
}

const undefinedTableErrCode = "42P01"

func isUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == undefinedTableErrCode
}

// KVRepository stores namespaced keys in the kv table.
type KVRepository struct {
	db *sqlx.DB
}

var (
	_ kv.Store   = (*KVRepository)(nil)
	_ kv.Batcher = (*KVRepository)(nil)
)

func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, ns kv.Namespace, key []byte) ([]byte, error) {
	const op = "adapter.repository.postgres.KVRepository.Get"

	var val []byte

	if err := r.db.GetContext(ctx, &val, getQuery, string(ns), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, kv.ErrKeyNotFound)
		}
		if isUndefinedTableError(err) {
			return nil, fmt.Errorf("%s: kv table is missing, run migrations: %w", op, err)
		}

		return nil, fmt.Errorf("%s: failed to get row from kv table: %w", op, err)
	}

	if val == nil {
		val = []byte{}
	}

	return val, nil
}

func (r *KVRepository) Put(ctx context.Context, ns kv.Namespace, key, value []byte) error {
	const op = "adapter.repository.postgres.KVRepository.Put"

	if !knownNamespace(ns) {
		return fmt.Errorf("%s: unknown namespace %q", op, ns)
	}

	if err := write(ctx, r.db, kv.Entry{Namespace: ns, Key: key, Value: value}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PutBatch writes all entries in one transaction. A link key that is already
// present aborts the whole batch with kv.ErrKeyExists.
func (r *KVRepository) PutBatch(ctx context.Context, entries ...kv.Entry) (err error) {
	const op = "adapter.repository.postgres.KVRepository.PutBatch"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, e := range entries {
		if !knownNamespace(e.Namespace) {
			return fmt.Errorf("%s: unknown namespace %q", op, e.Namespace)
		}

		if err := write(ctx, tx, e); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func knownNamespace(ns kv.Namespace) bool {
	for _, n := range kv.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}
