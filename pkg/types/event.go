// Package types provides the core data types shared by the tracking client,
// the sink, and the content provider.
package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// VisitorID is the anonymous, storage-persisted identifier of a browser profile.
// The empty VisitorID is valid and means "no client storage available".
type VisitorID string

// ExperimentKey names an experiment. It namespaces the assignment entry.
type ExperimentKey string

// VariantName names one alternative of an experiment.
type VariantName string

// Event names fired by the tracking client.
const (
	EventPageView   = "page-view"
	EventAssignment = "ab-test-assignment"
)

// AssignmentKeyPrefix prefixes the client storage key of every assignment.
const AssignmentKeyPrefix = "ab_"

// VisitorIDKey is the client storage key holding the VisitorID.
const VisitorIDKey = "anonymous_user_id"

// AssignmentTTL is how long an assignment stays valid after creation.
const AssignmentTTL = 30 * 24 * time.Hour

// StorageKey returns the client storage key for the experiment's assignment.
func (k ExperimentKey) StorageKey() string {
	return AssignmentKeyPrefix + string(k)
}

// Valid reports whether the variant name can identify a variant.
func (v VariantName) Valid() bool {
	return strings.TrimSpace(string(v)) != ""
}

// EventRecord is the canonical event sent from the tracking client to the sink.
type EventRecord struct {
	// Event is the event name (required)
	Event string `json:"event"`

	// Name is the experiment key or a caller-supplied name
	Name string `json:"name,omitempty"`

	// Timestamp is the client-side time in ISO-8601 (required)
	Timestamp string `json:"timestamp"`

	// Variant is the assigned variant, if any
	Variant string `json:"variant,omitempty"`

	// Page is the client-observed path
	Page string `json:"page,omitempty"`

	// UserID is the anonymous visitor identifier
	UserID VisitorID `json:"user_id"`

	// Metadata carries the caller's data unchanged; nil encodes as null
	Metadata map[string]any `json:"metadata"`
}

// MetadataValueKey holds a metadata value that is not a JSON object.
const MetadataValueKey = "value"

// UnmarshalJSON decodes a record as clients send it. Text fields take JSON
// strings as-is and any other value as its compact JSON text. Metadata that
// is not an object is kept under MetadataValueKey.
func (r *EventRecord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var wire struct {
		Event     json.RawMessage `json:"event"`
		Name      json.RawMessage `json:"name"`
		Timestamp json.RawMessage `json:"timestamp"`
		Variant   json.RawMessage `json:"variant"`
		Page      json.RawMessage `json:"page"`
		UserID    json.RawMessage `json:"user_id"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	metadata, err := looseMetadata(wire.Metadata)
	if err != nil {
		return err
	}
	*r = EventRecord{
		Event:     looseString(wire.Event),
		Name:      looseString(wire.Name),
		Timestamp: looseString(wire.Timestamp),
		Variant:   looseString(wire.Variant),
		Page:      looseString(wire.Page),
		UserID:    VisitorID(looseString(wire.UserID)),
		Metadata:  metadata,
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func looseMetadata(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	default:
		return map[string]any{MetadataValueKey: m}, nil
	}
}

// RequiredFields are the fields every record must carry.
var RequiredFields = []string{"event", "timestamp"}

// MissingRequired returns the names of required fields that are empty.
func (r EventRecord) MissingRequired() []string {
	var missing []string
	if r.Event == "" {
		missing = append(missing, "event")
	}
	if r.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	return missing
}

// FormatTimestamp renders t the way event records carry it: UTC, millisecond
// precision, ISO-8601.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
