// Package kv defines the key-value contract the shortener persists through.
//
// Keys live in namespaces so that the counter metadata can never collide with a
// generated short code, whatever the short code format. Implementations live in
// internal/adapter/repository.
package kv

import (
	"context"
	"encoding/binary"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key is absent.
// An empty value is not the same as an absent key.
var ErrKeyNotFound = errors.New("key not found")

// ErrKeyExists is returned when a write targets a key of a write-once
// namespace that is already present. A failed batch writes nothing.
var ErrKeyExists = errors.New("key already exists")

// Namespace separates groups of keys inside one store.
type Namespace string

const (
	// Links holds short code -> original URL records.
	Links Namespace = "links"
	// Meta holds service metadata such as the issue counter.
	Meta Namespace = "meta"
)

// WriteOnce reports whether keys in ns may be created but never replaced.
// Link records are immutable once issued.
func WriteOnce(ns Namespace) bool {
	return ns == Links
}

// Namespaces lists every namespace a store must provide.
var Namespaces = []Namespace{Links, Meta}

// CounterKey is the Meta key holding the number of issued short codes.
var CounterKey = []byte("__count__")

// Reader reads single keys.
type Reader interface {
	Get(ctx context.Context, ns Namespace, key []byte) ([]byte, error)
}

// Writer writes single keys. A nil error means the value survives a crash.
type Writer interface {
	Put(ctx context.Context, ns Namespace, key, value []byte) error
}

// Store is a durable key-value store.
type Store interface {
	Reader
	Writer
}

// Entry is one write of a batch.
type Entry struct {
	Namespace Namespace
	Key       []byte
	Value     []byte
}

// Batcher is implemented by stores that can commit several writes atomically:
// either every entry becomes durable or none does.
type Batcher interface {
	PutBatch(ctx context.Context, entries ...Entry) error
}

// EncodeCounter returns the 8-byte little-endian form of n.
func EncodeCounter(n uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), n)
}

// DecodeCounter parses a value written by EncodeCounter.
// ok is false if b is not exactly 8 bytes long.
func DecodeCounter(b []byte) (n uint64, ok bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}
