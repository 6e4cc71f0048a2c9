package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/surl/internal/kv"
	"github.com/vadimbarashkov/surl/internal/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return New()
	})
}

func TestStore_Len(t *testing.T) {
	s := New()

	assert.Zero(t, s.Len(kv.Links))

	assert.NoError(t, s.Put(t.Context(), kv.Links, []byte("/0"), []byte("a")))
	assert.NoError(t, s.Put(t.Context(), kv.Links, []byte("/1"), []byte("b")))

	assert.Equal(t, 2, s.Len(kv.Links))
	assert.Zero(t, s.Len(kv.Meta))
}
