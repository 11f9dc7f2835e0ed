package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EHam1/very-professional-blog/internal/clientstore"
	"github.com/EHam1/very-professional-blog/internal/identity"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// recordingTransport captures every record it is asked to send.
type recordingTransport struct {
	mu      sync.Mutex
	records []types.EventRecord
	result  Result
}

func (r *recordingTransport) Send(_ context.Context, record types.EventRecord) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.result
}

func (r *recordingTransport) Records() []types.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.EventRecord(nil), r.records...)
}

func waitFor(t *testing.T, e *Emitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("emitter did not drain: %v", err)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestEmitter_PageViewShape(t *testing.T) {
	visitors := identity.New(clientstore.NewMemoryStore())
	transport := &recordingTransport{}
	e := NewEmitter(transport, visitors, WithClock(fixedClock), WithPage(func() string { return "/posts/hello" }))

	e.Emit(types.EventPageView, nil)
	waitFor(t, e)

	records := transport.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec.Event != "page-view" {
		t.Errorf("event = %q, want page-view", rec.Event)
	}
	if rec.Name != "" || rec.Variant != "" {
		t.Errorf("name/variant should be absent, got %q/%q", rec.Name, rec.Variant)
	}
	if _, err := time.Parse(time.RFC3339, rec.Timestamp); err != nil {
		t.Errorf("timestamp %q is not ISO-8601: %v", rec.Timestamp, err)
	}
	if rec.Timestamp != "2024-01-01T00:00:00.000Z" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
	if rec.UserID == "" || rec.UserID != visitors.VisitorID() {
		t.Errorf("user_id = %q, want identity store value %q", rec.UserID, visitors.VisitorID())
	}
	if rec.Page != "/posts/hello" {
		t.Errorf("page = %q", rec.Page)
	}
	if rec.Metadata == nil || len(rec.Metadata) != 0 {
		t.Errorf("metadata should be an empty object, got %v", rec.Metadata)
	}
}

func TestEmitter_BuildFields(t *testing.T) {
	e := NewEmitter(nil, nil, WithClock(fixedClock))

	tests := []struct {
		name        string
		data        map[string]any
		wantName    string
		wantVariant string
	}{
		{"experiment wins over name", map[string]any{"experiment": "hero", "name": "other", "variant": "B"}, "hero", "B"},
		{"name used without experiment", map[string]any{"name": "newsletter"}, "newsletter", ""},
		{"empty experiment falls through", map[string]any{"experiment": "", "name": "cta"}, "cta", ""},
		{"non-string values ignored", map[string]any{"experiment": 7, "variant": true}, "", ""},
		{"no data", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Build("click", tt.data)
			if rec.Name != tt.wantName {
				t.Errorf("name = %q, want %q", rec.Name, tt.wantName)
			}
			if rec.Variant != tt.wantVariant {
				t.Errorf("variant = %q, want %q", rec.Variant, tt.wantVariant)
			}
			if len(rec.Metadata) != len(tt.data) {
				t.Errorf("metadata should carry the full data, got %v", rec.Metadata)
			}
			if rec.Page != "" {
				t.Errorf("no location provider: page should be absent, got %q", rec.Page)
			}
			if rec.UserID != "" {
				t.Errorf("no visitor source: user_id should be empty, got %q", rec.UserID)
			}
		})
	}
}

func TestEmitter_MetadataIsACopy(t *testing.T) {
	e := NewEmitter(nil, nil)
	data := map[string]any{"experiment": "hero"}
	rec := e.Build("x", data)
	data["experiment"] = "changed"

	if rec.Metadata["experiment"] != "hero" {
		t.Error("record metadata should not alias the caller's map")
	}
}

func TestEmitter_FailureIsSwallowedAndLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	transport := &recordingTransport{result: Result{Err: errors.New("network unreachable")}}
	e := NewEmitter(transport, nil, WithLogger(logger))

	e.Emit("page-view", nil)
	waitFor(t, e)

	if !strings.Contains(logs.String(), "failed to track event") {
		t.Errorf("expected failure to be logged, got %q", logs.String())
	}
}

func TestEmitter_PanickingTransportIsContained(t *testing.T) {
	var logs bytes.Buffer
	transport := TransportFunc(func(context.Context, types.EventRecord) Result {
		panic("boom")
	})
	e := NewEmitter(transport, nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	e.Emit("page-view", nil)
	waitFor(t, e)

	if !strings.Contains(logs.String(), "panicked") {
		t.Errorf("expected panic to be logged, got %q", logs.String())
	}
}

func TestEmitter_DebugLogsRecord(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := NewEmitter(&recordingTransport{}, nil, WithLogger(logger), WithDebug(true))

	e.Emit("ab-test-assignment", map[string]any{"experiment": "hero", "variant": "A"})
	waitFor(t, e)

	out := logs.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "tracked event") || !strings.Contains(out, "variant=A") {
		t.Errorf("debug mode should log the record at debug level, got %q", out)
	}
}

func TestEmitter_DebugRecordHiddenAtInfo(t *testing.T) {
	var logs bytes.Buffer
	e := NewEmitter(&recordingTransport{}, nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))), WithDebug(true))

	e.Emit("page-view", nil)
	waitFor(t, e)

	if logs.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", logs.String())
	}
}

func TestEmitter_WaitAlongsideEmit(t *testing.T) {
	transport := &recordingTransport{}
	e := NewEmitter(transport, nil)

	const emitters, perEmitter = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				e.Emit("page-view", nil)
			}
		}()
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.Wait(ctx); err != nil {
				t.Errorf("Wait: %v", err)
			}
		}()
	}
	wg.Wait()
	waitFor(t, e)

	if n := len(transport.Records()); n != emitters*perEmitter {
		t.Errorf("sent %d records, want %d", n, emitters*perEmitter)
	}
}

func TestEmitter_WaitBlocksOnSlowTransport(t *testing.T) {
	release := make(chan struct{})
	e := NewEmitter(TransportFunc(func(context.Context, types.EventRecord) Result {
		<-release
		return Result{}
	}), nil)

	e.Emit("page-view", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}

	close(release)
	waitFor(t, e)
}

func TestEmitter_QuietWithoutDebug(t *testing.T) {
	var logs bytes.Buffer
	e := NewEmitter(&recordingTransport{}, nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	e.Emit("page-view", nil)
	waitFor(t, e)

	if logs.Len() != 0 {
		t.Errorf("expected no log output, got %q", logs.String())
	}
}

func TestTrackPageView_RequiresLocation(t *testing.T) {
	transport := &recordingTransport{}

	TrackPageView(NewEmitter(transport, nil))
	TrackPageView(nil)
	if n := len(transport.Records()); n != 0 {
		t.Fatalf("non-browser context should not fire page views, got %d", n)
	}

	e := NewEmitter(transport, nil, WithPage(func() string { return "/" }))
	TrackPageView(e)
	waitFor(t, e)

	if n := len(transport.Records()); n != 1 {
		t.Errorf("expected one page view, got %d", n)
	}
}

func TestTrackAssignment(t *testing.T) {
	transport := &recordingTransport{}
	e := NewEmitter(transport, nil)

	e.TrackAssignment("hero", "B")
	waitFor(t, e)

	rec := transport.Records()[0]
	if rec.Event != types.EventAssignment || rec.Name != "hero" || rec.Variant != "B" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Metadata["experiment"] != "hero" || rec.Metadata["variant"] != "B" {
		t.Errorf("metadata should include experiment and variant, got %v", rec.Metadata)
	}
}

func TestHTTPTransport_PostsJSON(t *testing.T) {
	var got map[string]any
	var contentType, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+DefaultEndpoint, time.Second)
	res := tr.Send(context.Background(), types.EventRecord{
		Event:     "page-view",
		Timestamp: "2024-01-01T00:00:00.000Z",
		UserID:    "v-1",
		Metadata:  map[string]any{},
	})

	if !res.OK() || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	if method != http.MethodPost || contentType != "application/json" {
		t.Errorf("got %s %q", method, contentType)
	}
	if got["event"] != "page-view" || got["user_id"] != "v-1" {
		t.Errorf("unexpected body %v", got)
	}
	if _, ok := got["name"]; ok {
		t.Error("absent name should not be sent")
	}
}

func TestHTTPTransport_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Missing required fields: event, timestamp"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	res := NewHTTPTransport(srv.URL, time.Second).Send(context.Background(), types.EventRecord{})
	if res.OK() {
		t.Fatal("expected failure for 400")
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewHTTPTransport(url, time.Second).Send(context.Background(), types.EventRecord{Event: "x"})
	if res.OK() {
		t.Error("expected failure for closed server")
	}
}
