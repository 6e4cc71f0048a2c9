// Package allocator issues short codes from a persisted monotonic counter.
//
// One mutex serializes every issuance: reading the counter, writing the
// short code -> URL record and writing the new counter value all happen while it
// is held, so two callers can never observe or persist the same counter value.
//
// When the store implements kv.Batcher both records are committed in a single
// atomic batch. Otherwise they are written one after the other and a failure of the
// second write leaves the in-memory counter ahead of the persisted one; a restart in
// that state reissues the last short code. Recover is the only way the counter is
// restored, so the counter record must be written with the same durability as the
// mapping.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/vadimbarashkov/surl/internal/kv"
	"github.com/vadimbarashkov/surl/internal/shortcode"
)

// ErrExhausted is returned once every uint64 counter value has been issued.
var ErrExhausted = errors.New("short code space exhausted")

// Allocator owns the issue counter and the write path of the store.
type Allocator struct {
	mu    sync.Mutex
	next  uint64
	store kv.Store
}

// New returns an Allocator that issues next as its first counter value.
func New(store kv.Store, next uint64) *Allocator {
	return &Allocator{
		next:  next,
		store: store,
	}
}

// Recover reads the persisted counter and returns an Allocator continuing from it.
// A missing or malformed counter record starts the count at zero.
func Recover(ctx context.Context, store kv.Store) (*Allocator, error) {
	const op = "allocator.Recover"

	val, err := store.Get(ctx, kv.Meta, kv.CounterKey)
	if err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: failed to read counter: %w", op, err)
	}

	next, _ := kv.DecodeCounter(val)

	return New(store, next), nil
}

// Next returns the counter value the next issuance will use.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.next
}

// Allocate issues the next short code and persists it together with url.
// On error no short code is handed out.
func (a *Allocator) Allocate(ctx context.Context, url []byte) (string, error) {
	const op = "allocator.Allocator.Allocate"

	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	if n == math.MaxUint64 {
		return "", fmt.Errorf("%s: %w", op, ErrExhausted)
	}

	id := shortcode.Encode(n)
	link := kv.Entry{Namespace: kv.Links, Key: []byte(id), Value: url}
	counter := kv.Entry{Namespace: kv.Meta, Key: kv.CounterKey, Value: kv.EncodeCounter(n + 1)}

	if b, ok := a.store.(kv.Batcher); ok {
		if err := b.PutBatch(ctx, link, counter); err != nil {
			return "", fmt.Errorf("%s: failed to persist %s: %w", op, id, err)
		}

		a.next = n + 1
		return id, nil
	}

	if err := a.store.Put(ctx, link.Namespace, link.Key, link.Value); err != nil {
		return "", fmt.Errorf("%s: failed to persist %s: %w", op, id, err)
	}

	// The mapping is durable from here on; the counter must never go back to n.
	a.next = n + 1

	// A caller that goes away now must not leave the counter record behind.
	if err := a.store.Put(context.WithoutCancel(ctx), counter.Namespace, counter.Key, counter.Value); err != nil {
		return "", fmt.Errorf("%s: failed to persist counter after %s: %w", op, id, err)
	}

	return id, nil
}
