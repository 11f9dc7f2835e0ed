package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// memoryStore records inserted rows and optionally fails.
type memoryStore struct {
	mu     sync.Mutex
	rows   []eventstore.Row
	err    error
	closed bool
}

func (m *memoryStore) Insert(_ context.Context, row eventstore.Row) (eventstore.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return eventstore.Row{}, m.err
	}
	row.ID = eventstore.RowID("row-" + string(rune('0'+len(m.rows))))
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func validRecord() types.EventRecord {
	return types.EventRecord{
		Event:     types.EventPageView,
		Timestamp: "2024-01-01T00:00:00.000Z",
		Page:      "/",
		UserID:    "v-1",
		Metadata:  map[string]any{},
	}
}

func TestAccept_Persists(t *testing.T) {
	store := &memoryStore{}
	metrics := observability.NewMetrics()
	s := New(store, WithMetrics(metrics))

	res, err := s.Accept(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !res.Persisted || len(res.Rows) != 1 || res.Rows[0].ID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.rows))
	}

	row := store.rows[0]
	if row.Name != nil || row.Variant != nil {
		t.Errorf("empty name/variant should be NULL, got %+v", row)
	}
	if eventstore.Value(row.Page) != "/" {
		t.Errorf("page = %v", row.Page)
	}

	exposition := `
# HELP blog_events_received_total Events received by the sink, by known event name
# TYPE blog_events_received_total counter
blog_events_received_total{event="page-view"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(exposition), "blog_events_received_total"); err != nil {
		t.Error(err)
	}
}

func TestAccept_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		rec  types.EventRecord
	}{
		{"no event", types.EventRecord{Timestamp: "t"}},
		{"no timestamp", types.EventRecord{Event: "page-view"}},
		{"neither", types.EventRecord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			_, err := New(store).Accept(context.Background(), tt.rec)

			if blogerrors.GetCategory(err) != blogerrors.ErrCategoryValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			var be *blogerrors.BlogError
			errors.As(err, &be)
			if be.Message != "Missing required fields: event, timestamp" {
				t.Errorf("message = %q", be.Message)
			}
			if !errors.Is(err, types.ErrMissingRequired) {
				t.Errorf("error should wrap ErrMissingRequired")
			}
			if len(store.rows) != 0 {
				t.Error("invalid record must not be stored")
			}
		})
	}
}

func TestAccept_DegradedWithoutStore(t *testing.T) {
	var logs bytes.Buffer
	s := New(nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	rec := validRecord()
	rec.Name = "hero"
	rec.Variant = "A"
	res, err := s.Accept(context.Background(), rec)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.Persisted || res.Message != DegradedMessage {
		t.Errorf("unexpected result %+v", res)
	}
	if s.Configured() {
		t.Error("sink without store should report unconfigured")
	}

	out := logs.String()
	for _, want := range []string{"storage not configured", "event=page-view", "name=hero", "variant=A", "page=/"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestAccept_DegradedStillValidates(t *testing.T) {
	_, err := New(nil).Accept(context.Background(), types.EventRecord{Event: "x"})
	if blogerrors.GetCode(err) != blogerrors.CodeMissingFields {
		t.Errorf("expected missing fields, got %v", err)
	}
}

func TestAccept_StorageFailure(t *testing.T) {
	backendErr := errors.New(`relation "events" does not exist`)
	store := &memoryStore{err: backendErr}
	metrics := observability.NewMetrics()

	_, err := New(store, WithMetrics(metrics)).Accept(context.Background(), validRecord())

	if blogerrors.GetCategory(err) != blogerrors.ErrCategoryStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Error("storage error should wrap the backend error")
	}
	var be *blogerrors.BlogError
	errors.As(err, &be)
	if be.Message != FailedMessage || be.Cause.Error() != backendErr.Error() {
		t.Errorf("unexpected error %+v", be)
	}
	if blogerrors.IsRetryable(err) {
		t.Error("inserts are never retried")
	}
}

func TestAccept_MetricsOutcomes(t *testing.T) {
	metrics := observability.NewMetrics()
	s := New(&memoryStore{}, WithMetrics(metrics))
	ctx := context.Background()

	s.Accept(ctx, validRecord())
	s.Accept(ctx, validRecord())
	s.Accept(ctx, types.EventRecord{})

	exposition := `
# HELP blog_events_persisted_total Events written to the event store
# TYPE blog_events_persisted_total counter
blog_events_persisted_total 2
# HELP blog_events_rejected_total Requests rejected before reaching storage, by reason
# TYPE blog_events_rejected_total counter
blog_events_rejected_total{reason="missing_fields"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(exposition),
		"blog_events_persisted_total", "blog_events_rejected_total"); err != nil {
		t.Error(err)
	}
}

func TestSink_Close(t *testing.T) {
	store := &memoryStore{}
	if err := New(store).Close(); err != nil || !store.closed {
		t.Errorf("Close = %v, closed = %v", err, store.closed)
	}
	if err := New(nil).Close(); err != nil {
		t.Errorf("degraded Close = %v", err)
	}
}
