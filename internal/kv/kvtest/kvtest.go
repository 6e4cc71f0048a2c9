// Package kvtest runs the same behavioural checks against every kv.Store.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/surl/internal/kv"
)

// Run exercises the store returned by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)

		val, err := s.Get(ctx, kv.Links, []byte("/0"))

		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
		assert.Nil(t, val)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Links, []byte("/0"), []byte("http://example.com")))

		val, err := s.Get(ctx, kv.Links, []byte("/0"))

		require.NoError(t, err)
		assert.Equal(t, []byte("http://example.com"), val)
	})

	t.Run("empty value is not missing", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Links, []byte("/1"), []byte{}))

		val, err := s.Get(ctx, kv.Links, []byte("/1"))

		require.NoError(t, err)
		assert.Empty(t, val)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Meta, kv.CounterKey, kv.EncodeCounter(1)))
		require.NoError(t, s.Put(ctx, kv.Meta, kv.CounterKey, kv.EncodeCounter(2)))

		val, err := s.Get(ctx, kv.Meta, kv.CounterKey)

		require.NoError(t, err)
		assert.Equal(t, kv.EncodeCounter(2), val)
	})

	t.Run("link keys are write-once", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Links, []byte("/0"), []byte("http://first.example.com")))

		err := s.Put(ctx, kv.Links, []byte("/0"), []byte("http://second.example.com"))
		assert.ErrorIs(t, err, kv.ErrKeyExists)

		val, err := s.Get(ctx, kv.Links, []byte("/0"))
		require.NoError(t, err)
		assert.Equal(t, []byte("http://first.example.com"), val)
	})

	t.Run("namespaces are separate", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Meta, kv.CounterKey, kv.EncodeCounter(7)))

		_, err := s.Get(ctx, kv.Links, kv.CounterKey)
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)

		require.NoError(t, s.Put(ctx, kv.Links, kv.CounterKey, []byte("http://example.com")))

		val, err := s.Get(ctx, kv.Meta, kv.CounterKey)
		require.NoError(t, err)
		assert.Equal(t, kv.EncodeCounter(7), val)
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, kv.Links, []byte("/2"), []byte("http://example.com")))

		val, err := s.Get(ctx, kv.Links, []byte("/2"))
		require.NoError(t, err)
		val[0] = 'X'

		val, err = s.Get(ctx, kv.Links, []byte("/2"))
		require.NoError(t, err)
		assert.Equal(t, []byte("http://example.com"), val)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := s.Put(cctx, kv.Links, []byte("/3"), []byte("http://example.com"))
		assert.ErrorIs(t, err, context.Canceled)

		_, err = s.Get(ctx, kv.Links, []byte("/3"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("batch", func(t *testing.T) {
		s := newStore(t)

		b, ok := s.(kv.Batcher)
		if !ok {
			t.Skip("store does not implement kv.Batcher")
		}

		err := b.PutBatch(ctx,
			kv.Entry{Namespace: kv.Links, Key: []byte("/0"), Value: []byte("http://example.com")},
			kv.Entry{Namespace: kv.Meta, Key: kv.CounterKey, Value: kv.EncodeCounter(1)},
		)
		require.NoError(t, err)

		val, err := s.Get(ctx, kv.Links, []byte("/0"))
		require.NoError(t, err)
		assert.Equal(t, []byte("http://example.com"), val)

		val, err = s.Get(ctx, kv.Meta, kv.CounterKey)
		require.NoError(t, err)
		assert.Equal(t, kv.EncodeCounter(1), val)
	})

	t.Run("failed batch writes nothing", func(t *testing.T) {
		s := newStore(t)

		b, ok := s.(kv.Batcher)
		if !ok {
			t.Skip("store does not implement kv.Batcher")
		}

		err := b.PutBatch(ctx,
			kv.Entry{Namespace: kv.Links, Key: []byte("/0"), Value: []byte("http://example.com")},
			kv.Entry{Namespace: kv.Namespace("bogus"), Key: []byte("k"), Value: []byte("v")},
		)
		require.Error(t, err)

		_, err = s.Get(ctx, kv.Links, []byte("/0"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("batch with existing link writes nothing", func(t *testing.T) {
		s := newStore(t)

		b, ok := s.(kv.Batcher)
		if !ok {
			t.Skip("store does not implement kv.Batcher")
		}

		require.NoError(t, b.PutBatch(ctx,
			kv.Entry{Namespace: kv.Links, Key: []byte("/0"), Value: []byte("http://first.example.com")},
			kv.Entry{Namespace: kv.Meta, Key: kv.CounterKey, Value: kv.EncodeCounter(1)},
		))

		err := b.PutBatch(ctx,
			kv.Entry{Namespace: kv.Links, Key: []byte("/0"), Value: []byte("http://second.example.com")},
			kv.Entry{Namespace: kv.Meta, Key: kv.CounterKey, Value: kv.EncodeCounter(2)},
		)
		assert.ErrorIs(t, err, kv.ErrKeyExists)

		val, err := s.Get(ctx, kv.Links, []byte("/0"))
		require.NoError(t, err)
		assert.Equal(t, []byte("http://first.example.com"), val)

		val, err = s.Get(ctx, kv.Meta, kv.CounterKey)
		require.NoError(t, err)
		assert.Equal(t, kv.EncodeCounter(1), val)
	})

	t.Run("batch repeating a link key writes nothing", func(t *testing.T) {
		s := newStore(t)

		b, ok := s.(kv.Batcher)
		if !ok {
			t.Skip("store does not implement kv.Batcher")
		}

		err := b.PutBatch(ctx,
			kv.Entry{Namespace: kv.Links, Key: []byte("/5"), Value: []byte("http://a.example.com")},
			kv.Entry{Namespace: kv.Links, Key: []byte("/5"), Value: []byte("http://b.example.com")},
		)
		assert.ErrorIs(t, err, kv.ErrKeyExists)

		_, err = s.Get(ctx, kv.Links, []byte("/5"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("concurrent readers and writers", func(t *testing.T) {
		s := newStore(t)

		const n = 50

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := []byte(fmt.Sprintf("/k%d", i))
				assert.NoError(t, s.Put(ctx, kv.Links, key, key))
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := []byte(fmt.Sprintf("/k%d", i))
				val, err := s.Get(ctx, kv.Links, key)
				assert.NoError(t, err)
				assert.Equal(t, key, val)
			}(i)
		}
		wg.Wait()
	})
}
