// Package clientstore provides the visitor-side key-value storage that backs
// the identity and assignment stores. It stands in for a browser's cookie
// jar and local storage: values are strings, entries may carry an expiry,
// and an expired entry reads as absent.
package clientstore

import (
	"errors"
	"time"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("client store closed")

// Store is a string key-value store with per-entry expiry.
type Store interface {
	// Get returns the value for key. ok is false when the key is missing
	// or its entry has expired.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key. A zero expiresAt means the entry never expires.
	Set(key, value string, expiresAt time.Time) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// entry is a stored value with its optional expiry.
type entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}
