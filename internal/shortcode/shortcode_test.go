package shortcode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want string
	}{
		{name: "zero", n: 0, want: "/0"},
		{name: "single digit", n: 9, want: "/9"},
		{name: "lower case", n: 10, want: "/a"},
		{name: "upper case", n: 36, want: "/A"},
		{name: "last single symbol", n: 61, want: "/Z"},
		{name: "first carry", n: 62, want: "/01"},
		{name: "least significant first", n: 63, want: "/11"},
		{name: "two full digits", n: 62*62 - 1, want: "/ZZ"},
		{name: "second carry", n: 62 * 62, want: "/001"},
		{name: "max uint64", n: math.MaxUint64, want: "/fyha61AhGYl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.n))
		})
	}
}

func TestEncode_Injective(t *testing.T) {
	seen := make(map[string]uint64, 200_000)

	check := func(n uint64) {
		id := Encode(n)
		if prev, ok := seen[id]; ok {
			t.Fatalf("Encode(%d) and Encode(%d) both produced %q", prev, n, id)
		}
		seen[id] = n
	}

	for n := uint64(0); n < 100_000; n++ {
		check(n)
	}
	for n := uint64(math.MaxUint64); n > math.MaxUint64-100_000; n-- {
		check(n)
	}
}

func TestDecode(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		values := []uint64{0, 1, 61, 62, 63, 3843, 3844, 1 << 32, 1<<63 + 7, math.MaxUint64}

		for _, n := range values {
			got, err := Decode(Encode(n))

			require.NoError(t, err)
			assert.Equal(t, n, got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		ids := []string{
			"",
			"/",
			"0",
			"abc",
			"/a-b",
			"//",
			"/10",
			"__count__",
			"/0123456789ab",
		}

		for _, id := range ids {
			_, err := Decode(id)

			assert.ErrorIs(t, err, ErrInvalid, "id %q", id)
			assert.False(t, Valid(id), "id %q", id)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := Decode("/ZZZZZZZZZZZ")

		assert.ErrorIs(t, err, ErrOverflow)
	})
}
