// Package tracking builds event records on the visitor side and forwards them
// to the sink. Emission is fire-and-forget: records are sent asynchronously,
// failures are logged, and callers are never interrupted.
package tracking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// VisitorSource supplies the anonymous visitor id for each record.
type VisitorSource interface {
	VisitorID() types.VisitorID
}

// Emitter builds and transmits event records.
type Emitter struct {
	transport Transport
	visitors  VisitorSource
	page      func() string
	now       func() time.Time
	debug     bool
	timeout   time.Duration
	logger    *slog.Logger

	// in-flight transmissions; idle is closed when pending drops to zero
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithPage sets the location provider. Without one the emitter behaves as in
// a non-browser context: records carry no page and page views are not fired.
func WithPage(page func() string) Option {
	return func(e *Emitter) {
		e.page = page
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// WithDebug also writes every record to the log, as development runs do.
func WithDebug(debug bool) Option {
	return func(e *Emitter) {
		e.debug = debug
	}
}

// WithTimeout bounds each transmission.
func WithTimeout(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmitter creates an emitter sending through transport. visitors may be nil,
// in which case records carry the empty visitor id.
func NewEmitter(transport Transport, visitors VisitorSource, opts ...Option) *Emitter {
	e := &Emitter{
		transport: transport,
		visitors:  visitors,
		now:       time.Now,
		timeout:   10 * time.Second,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit builds a record for event and transmits it in the background.
// It returns immediately and never reports failure.
func (e *Emitter) Emit(event string, data map[string]any) {
	record := e.Build(event, data)

	e.begin()
	go func() {
		defer e.end()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("event transport panicked",
					slog.String("event", record.Event),
					slog.Any("panic", r),
				)
			}
		}()
		e.transmit(record)
	}()
}

// Build constructs the canonical record for event without sending it.
func (e *Emitter) Build(event string, data map[string]any) types.EventRecord {
	record := types.EventRecord{
		Event:     event,
		Name:      firstString(data, "experiment", "name"),
		Timestamp: types.FormatTimestamp(e.now()),
		Variant:   firstString(data, "variant"),
		Metadata:  make(map[string]any, len(data)),
	}
	for k, v := range data {
		record.Metadata[k] = v
	}

	if e.page != nil {
		record.Page = e.page()
	}
	if e.visitors != nil {
		record.UserID = e.visitors.VisitorID()
	}
	return record
}

// transmit sends one record and logs the outcome.
func (e *Emitter) transmit(record types.EventRecord) Result {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	var result Result
	if e.transport == nil {
		result = Result{}
	} else {
		result = e.transport.Send(ctx, record)
	}

	if e.debug {
		e.logger.Debug("tracked event",
			slog.String("event", record.Event),
			slog.String("name", record.Name),
			slog.String("variant", record.Variant),
			slog.String("page", record.Page),
			slog.String("user_id", string(record.UserID)),
			slog.String("timestamp", record.Timestamp),
			slog.Any("metadata", record.Metadata),
		)
	}

	if !result.OK() {
		e.logger.Warn("failed to track event",
			slog.String("event", record.Event),
			slog.Int("status", result.StatusCode),
			slog.String("error", result.Err.Error()),
		)
	}
	return result
}

func (e *Emitter) begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++
}

func (e *Emitter) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	if e.pending == 0 {
		close(e.idle)
	}
}

// Wait blocks until no transmission is in flight or ctx is done. It may run
// alongside Emit; it returns at the first moment nothing is pending.
// Anything still in flight when ctx ends is abandoned.
func (e *Emitter) Wait(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 {
		e.mu.Unlock()
		return nil
	}
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// firstString returns the first non-empty string value among keys.
func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
