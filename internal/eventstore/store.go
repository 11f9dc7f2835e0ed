// Package eventstore provides the durable append-only event table the sink
// writes to. Backends are chosen by URL scheme: a local SQLite database, a
// PostgREST-compatible HTTP API, or a compressed object archive on S3 or the
// local filesystem.
package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// DefaultTable is the event table name.
const DefaultTable = "events"

// ErrNotConfigured is returned by Open when no backend is configured. The sink
// treats it as degraded mode, not as a failure.
var ErrNotConfigured = errors.New("eventstore: storage not configured")

// Store appends event rows.
type Store interface {
	// Insert appends row and returns it as stored, including any
	// backend-assigned id.
	Insert(ctx context.Context, row Row) (Row, error)

	// Close releases the backend.
	Close() error
}

// RowID is a backend-assigned row identifier. Backends use integers or
// strings; both decode into a RowID.
type RowID string

// UnmarshalJSON accepts a JSON string or number.
func (id *RowID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("eventstore: invalid row id %s", data)
	}
	*id = RowID(n.String())
	return nil
}

// Row is one stored event. Optional columns are nil when absent.
// The visitor id is not a column.
type Row struct {
	ID        RowID          `json:"id,omitempty"`
	Event     string         `json:"event"`
	Name      *string        `json:"name"`
	Timestamp string         `json:"timestamp"`
	Variant   *string        `json:"variant"`
	Page      *string        `json:"page"`
	Metadata  map[string]any `json:"metadata"`
}

// RowFromRecord maps a received record to its row. Empty optional strings
// become NULL; nil metadata is NULL.
func RowFromRecord(rec types.EventRecord) Row {
	return Row{
		Event:     rec.Event,
		Name:      nullable(rec.Name),
		Timestamp: rec.Timestamp,
		Variant:   nullable(rec.Variant),
		Page:      nullable(rec.Page),
		Metadata:  rec.Metadata,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Value returns *s, or "" for NULL.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// metadataColumn encodes metadata for text columns; nil stays NULL.
func metadataColumn(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to encode metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}

func parseMetadataColumn(s *string) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, fmt.Errorf("eventstore: failed to decode metadata: %w", err)
	}
	return m, nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validTable reports whether name is usable as a table name.
func validTable(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("eventstore: invalid table name %q", name)
	}
	return nil
}

func formatInt(n int64) RowID {
	return RowID(strconv.FormatInt(n, 10))
}
