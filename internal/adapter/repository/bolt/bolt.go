// Package bolt provides a kv.Store backed by a single bbolt file on local disk.
//
// Every namespace is a top-level bucket. Writes are committed with an fsync, so a
// successful Put or PutBatch survives an unclean shutdown; reads run in concurrent
// read-only transactions.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vadimbarashkov/surl/internal/kv"
	"go.etcd.io/bbolt"
)

const defaultOpenTimeout = time.Second

var errBucketMissing = errors.New("bucket is missing")

// Option tunes the underlying bbolt database.
type Option func(*bbolt.Options)

// WithOpenTimeout bounds how long Open waits for the file lock. Non-positive
// values keep the default.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *bbolt.Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithInitialMmapSize preallocates the memory map to avoid remapping while the file grows.
func WithInitialMmapSize(size int) Option {
	return func(o *bbolt.Options) {
		o.InitialMmapSize = size
	}
}

// WithNoFreelistSync skips writing the freelist on commit, trading slower
// startup for faster writes.
func WithNoFreelistSync(v bool) Option {
	return func(o *bbolt.Options) {
		o.NoFreelistSync = v
	}
}

// Store is a bbolt-backed kv.Store.
type Store struct {
	db *bbolt.DB
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Batcher = (*Store)(nil)
)

// Open opens or creates the database file at path and makes sure every namespace exists.
func Open(path string, opts ...Option) (*Store, error) {
	const op = "adapter.repository.bolt.Open"

	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s: storage path is required", op)
	}

	options := &bbolt.Options{
		Timeout:      defaultOpenTimeout,
		FreelistType: bbolt.FreelistMapType,
	}
	for _, opt := range opts {
		opt(options)
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Close releases the file lock and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) Get(ctx context.Context, ns kv.Namespace, key []byte) ([]byte, error) {
	const op = "adapter.repository.bolt.Store.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var val []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return fmt.Errorf("%q: %w", ns, errBucketMissing)
		}

		// A cursor tells an empty value apart from a missing key.
		k, v := b.Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return kv.ErrKeyNotFound
		}

		// v is only valid inside the transaction.
		val = bytes.Clone(v)
		if val == nil {
			val = []byte{}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return val, nil
}

func (s *Store) Put(ctx context.Context, ns kv.Namespace, key, value []byte) error {
	const op = "adapter.repository.bolt.Store.Put"

	if err := s.update(ctx, kv.Entry{Namespace: ns, Key: key, Value: value}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PutBatch writes all entries in one read-write transaction.
func (s *Store) PutBatch(ctx context.Context, entries ...kv.Entry) error {
	const op = "adapter.repository.bolt.Store.PutBatch"

	if err := s.update(ctx, entries...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) update(ctx context.Context, entries ...kv.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, e := range entries {
			b := tx.Bucket([]byte(e.Namespace))
			if b == nil {
				return fmt.Errorf("%q: %w", e.Namespace, errBucketMissing)
			}

			if kv.WriteOnce(e.Namespace) {
				if k, _ := b.Cursor().Seek(e.Key); k != nil && bytes.Equal(k, e.Key) {
					return fmt.Errorf("%q in %q: %w", e.Key, e.Namespace, kv.ErrKeyExists)
				}
			}

			if err := b.Put(e.Key, e.Value); err != nil {
				return fmt.Errorf("failed to put key into %q: %w", e.Namespace, err)
			}
		}
		return nil
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, ns := range kv.Namespaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return fmt.Errorf("failed to create %q bucket: %w", ns, err)
			}
		}
		return nil
	})
}
