// Package memory provides an in-process kv.Store backed by maps.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/vadimbarashkov/surl/internal/kv"
)

// Store is a map-backed kv.Store. It is not durable and is meant for tests
// and throwaway instances.
type Store struct {
	mu   sync.RWMutex
	data map[kv.Namespace]map[string][]byte
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Batcher = (*Store)(nil)
)

func New() *Store {
	data := make(map[kv.Namespace]map[string][]byte, len(kv.Namespaces))
	for _, ns := range kv.Namespaces {
		data[ns] = make(map[string][]byte)
	}

	return &Store{data: data}
}

func (s *Store) Get(ctx context.Context, ns kv.Namespace, key []byte) ([]byte, error) {
	const op = "adapter.repository.memory.Store.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.data[ns]
	if !ok {
		return nil, fmt.Errorf("%s: unknown namespace %q", op, ns)
	}

	val, ok := bucket[string(key)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, kv.ErrKeyNotFound)
	}

	return bytes.Clone(val), nil
}

func (s *Store) Put(ctx context.Context, ns kv.Namespace, key, value []byte) error {
	return s.PutBatch(ctx, kv.Entry{Namespace: ns, Key: key, Value: value})
}

func (s *Store) PutBatch(ctx context.Context, entries ...kv.Entry) error {
	const op = "adapter.repository.memory.Store.PutBatch"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range entries {
		bucket, ok := s.data[e.Namespace]
		if !ok {
			return fmt.Errorf("%s: unknown namespace %q", op, e.Namespace)
		}

		if !kv.WriteOnce(e.Namespace) {
			continue
		}

		_, exists := bucket[string(e.Key)]
		if !exists {
			exists = duplicateKey(entries[:i], e)
		}
		if exists {
			return fmt.Errorf("%s: %q in %q: %w", op, e.Key, e.Namespace, kv.ErrKeyExists)
		}
	}

	for _, e := range entries {
		s.data[e.Namespace][string(e.Key)] = bytes.Clone(e.Value)
	}

	return nil
}

func duplicateKey(earlier []kv.Entry, e kv.Entry) bool {
	for _, prev := range earlier {
		if prev.Namespace == e.Namespace && bytes.Equal(prev.Key, e.Key) {
			return true
		}
	}
	return false
}

// Len returns the number of keys in ns.
func (s *Store) Len(ns kv.Namespace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data[ns])
}
