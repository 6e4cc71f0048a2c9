// Package entity defines the entities and errors shared by the shortener layers.
// It includes the Link struct, which pairs an issued short code with the URL
// it resolves to, and the error values used to classify failures.
package entity

import "errors"

var (
	// ErrEmptyURL is returned when a URL to shorten is missing or empty.
	ErrEmptyURL = errors.New("url is required")
	// ErrURLNotFound is returned when a short code was never issued.
	ErrURLNotFound = errors.New("url not found")
	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("storage failure")
)

// Link represents an issued short code.
type Link struct {
	ShortCode   string // ShortCode is the generated identifier, prefix included.
	OriginalURL string // OriginalURL is the URL exactly as it was submitted.
}
