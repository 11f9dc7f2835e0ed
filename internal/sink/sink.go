// Package sink is the server side of event collection: it validates incoming
// records and appends them to the event store, or acknowledges them without
// persisting when no store is configured.
package sink

import (
	"context"
	"log/slog"
	"strings"
	"time"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// Messages returned to clients.
const (
	DegradedMessage = "Event logged locally (storage not configured)"
	FailedMessage   = "Failed to log event"
)

// Result is a successful acceptance. Exactly one of Rows (persisted) or
// Message (degraded) is set.
type Result struct {
	Persisted bool
	Rows      []eventstore.Row
	Message   string
}

// Sink accepts event records.
type Sink struct {
	store   eventstore.Store
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithMetrics records acceptance outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sink) {
		s.metrics = m
	}
}

// WithLogger sets the sink's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = observability.OrDiscard(logger)
	}
}

// New creates a sink writing to store. A nil store runs the sink degraded.
func New(store eventstore.Store, opts ...Option) *Sink {
	s := &Sink{
		store:  store,
		logger: observability.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether events are persisted.
func (s *Sink) Configured() bool {
	return s.store != nil
}

// Metrics returns the sink's metrics, which may be nil.
func (s *Sink) Metrics() *observability.Metrics {
	return s.metrics
}

// Accept validates rec and persists it.
//
// A record without event or timestamp yields a VALIDATION error. Without a
// store the record is logged and acknowledged with DegradedMessage. A store
// failure yields a STORAGE error whose cause carries the backend's message.
// Each call performs at most one insert.
func (s *Sink) Accept(ctx context.Context, rec types.EventRecord) (Result, error) {
	if missing := rec.MissingRequired(); len(missing) > 0 {
		s.metrics.Rejected(observability.ReasonMissingFields)
		return Result{}, MissingFieldsError()
	}

	s.metrics.Received(rec.Event)

	if s.store == nil {
		s.metrics.Degraded()
		s.logger.Info("event tracked, storage not configured",
			slog.String("event", rec.Event),
			slog.String("name", rec.Name),
			slog.String("variant", rec.Variant),
			slog.String("page", rec.Page),
		)
		return Result{Message: DegradedMessage}, nil
	}

	start := s.now()
	row, err := s.store.Insert(ctx, eventstore.RowFromRecord(rec))
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.Failed(elapsed)
		s.logger.Error("event store insert failed",
			slog.String("event", rec.Event),
			slog.String("error", err.Error()),
		)
		return Result{}, blogerrors.NewStorageError(blogerrors.CodeInsertFailed, FailedMessage, err)
	}

	s.metrics.Persisted(elapsed)
	return Result{Persisted: true, Rows: []eventstore.Row{row}}, nil
}

// Close closes the underlying store.
func (s *Sink) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// MissingFieldsError is the validation failure for records without event or
// timestamp. Its message names both required fields.
func MissingFieldsError() *blogerrors.BlogError {
	return blogerrors.Wrap(blogerrors.ErrCategoryValidation, blogerrors.CodeMissingFields,
		"Missing required fields: "+strings.Join(types.RequiredFields, ", "), types.ErrMissingRequired)
}
