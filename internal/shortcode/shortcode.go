// Package shortcode converts counter values into short identifiers and back.
//
// An identifier is the Prefix followed by the radix-62 digits of the counter,
// least-significant digit first. Encode(0) is "/0", Encode(62) is "/01".
package shortcode

import (
	"errors"
	"math"
	"strings"
)

const (
	// Prefix marks a generated identifier.
	Prefix = '/'
	// Alphabet holds the 62 digit symbols in value order.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	base = uint64(len(Alphabet))
	// maxLen is the length of Encode(math.MaxUint64) including the prefix.
	maxLen = 12
)

var (
	// ErrInvalid is returned by Decode for strings that were not produced by Encode.
	ErrInvalid = errors.New("invalid short code")
	// ErrOverflow is returned by Decode when the digits exceed the uint64 range.
	ErrOverflow = errors.New("short code exceeds uint64 range")
)

var digitValue = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		t[Alphabet[i]] = int8(i)
	}
	return t
}()

// Encode returns the identifier for the counter value n.
func Encode(n uint64) string {
	var b strings.Builder
	b.Grow(maxLen)
	b.WriteByte(Prefix)

	for n >= base {
		b.WriteByte(Alphabet[n%base])
		n /= base
	}
	b.WriteByte(Alphabet[n])

	return b.String()
}

// Decode returns the counter value an identifier was built from.
func Decode(id string) (uint64, error) {
	if len(id) < 2 || len(id) > maxLen || id[0] != Prefix {
		return 0, ErrInvalid
	}

	digits := id[1:]

	// Encode never emits a trailing zero digit except for the value 0 itself.
	if len(digits) > 1 && digits[len(digits)-1] == Alphabet[0] {
		return 0, ErrInvalid
	}

	var n uint64
	for i := len(digits) - 1; i >= 0; i-- {
		v := digitValue[digits[i]]
		if v < 0 {
			return 0, ErrInvalid
		}
		if n > (math.MaxUint64-uint64(v))/base {
			return 0, ErrOverflow
		}
		n = n*base + uint64(v)
	}

	return n, nil
}

// Valid reports whether id could have been produced by Encode.
func Valid(id string) bool {
	_, err := Decode(id)
	return err == nil
}
