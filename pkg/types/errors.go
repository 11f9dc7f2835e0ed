package types

import "errors"

// Record-level errors
var (
	// ErrMissingRequired is returned when an event record lacks event or timestamp
	ErrMissingRequired = errors.New("missing required fields: event, timestamp")

	// ErrContentNotFound is returned when a content lookup yields nothing
	ErrContentNotFound = errors.New("content not found")
)
