package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/sink"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

type stubStore struct {
	rows []eventstore.Row
	err  error
}

func (s *stubStore) Insert(_ context.Context, row eventstore.Row) (eventstore.Row, error) {
	if s.err != nil {
		return eventstore.Row{}, s.err
	}
	row.ID = "1"
	s.rows = append(s.rows, row)
	return row, nil
}

func (s *stubStore) Close() error { return nil }

func dialService(t *testing.T, s *sink.Sink) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewEventLogService(s, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func pageView() types.EventRecord {
	return types.EventRecord{
		Event:     types.EventPageView,
		Timestamp: "2024-01-01T00:00:00.000Z",
		Page:      "/posts/hello",
		UserID:    "v-1",
	}
}

func TestEventLog_Persists(t *testing.T) {
	store := &stubStore{}
	client := dialService(t, sink.New(store))

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-9")
	resp, err := client.Log(ctx, pageView(), grpc.Header(&header))
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	body := resp.AsMap()
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v", body["data"])
	}
	row := data[0].(map[string]interface{})
	if row["page"] != "/posts/hello" || row["variant"] != nil {
		t.Errorf("unexpected row %v", row)
	}
	if len(store.rows) != 1 {
		t.Errorf("expected one insert, got %d", len(store.rows))
	}
	if got := header.Get("x-request-id"); len(got) != 1 || got[0] != "req-9" {
		t.Errorf("x-request-id header = %v", got)
	}
}

func TestEventLog_Degraded(t *testing.T) {
	client := dialService(t, sink.New(nil))

	resp, err := client.Log(context.Background(), pageView())
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	body := resp.AsMap()
	if body["success"] != true || body["message"] != sink.DegradedMessage {
		t.Errorf("unexpected body %v", body)
	}
}

func TestEventLog_MissingFields(t *testing.T) {
	store := &stubStore{}
	client := dialService(t, sink.New(store))

	rec := pageView()
	rec.Timestamp = ""
	_, err := client.Log(context.Background(), rec)

	st, _ := status.FromError(err)
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", st.Code())
	}
	if st.Message() != "Missing required fields: event, timestamp" {
		t.Errorf("message = %q", st.Message())
	}
	if len(store.rows) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestEventLog_StorageFailure(t *testing.T) {
	client := dialService(t, sink.New(&stubStore{err: errors.New("disk full")}))

	_, err := client.Log(context.Background(), pageView())

	st, _ := status.FromError(err)
	if st.Code() != codes.Internal {
		t.Fatalf("code = %v, want Internal", st.Code())
	}
	if st.Message() != "Failed to log event: disk full" {
		t.Errorf("message = %q", st.Message())
	}
}

func TestRecordFromStruct(t *testing.T) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"event":     "ab-test-assignment",
		"name":      "hero",
		"timestamp": "t",
		"variant":   "B",
		"metadata":  map[string]interface{}{"k": "v"},
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	rec, err := RecordFromStruct(s)
	if err != nil {
		t.Fatalf("RecordFromStruct: %v", err)
	}
	if rec.Event != "ab-test-assignment" || rec.Name != "hero" || rec.Variant != "B" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Metadata["k"] != "v" {
		t.Errorf("metadata = %v", rec.Metadata)
	}

	loose, err := RecordFromStruct(&structpb.Struct{Fields: map[string]*structpb.Value{
		"event":    structpb.NewNumberValue(3),
		"metadata": structpb.NewStringValue("plain"),
	}})
	if err != nil {
		t.Fatalf("RecordFromStruct: %v", err)
	}
	if loose.Event != "3" || loose.Metadata[types.MetadataValueKey] != "plain" {
		t.Errorf("unexpected record %+v", loose)
	}
}
