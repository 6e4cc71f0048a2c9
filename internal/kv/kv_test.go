package kv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeCounter(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, EncodeCounter(1))
	assert.Equal(t, []byte{0x3f, 0, 0, 0, 0, 0, 0, 0}, EncodeCounter(63))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, EncodeCounter(math.MaxUint64))
}

func TestDecodeCounter(t *testing.T) {
	tests := []struct {
		name   string
		b      []byte
		want   uint64
		wantOK bool
	}{
		{name: "nil", b: nil},
		{name: "short", b: []byte{1, 0, 0}},
		{name: "long", b: make([]byte, 9)},
		{name: "zero", b: make([]byte, 8), wantOK: true},
		{name: "little endian", b: []byte{0, 1, 0, 0, 0, 0, 0, 0}, want: 256, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeCounter(tt.b)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
