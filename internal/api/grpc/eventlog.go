// Package grpc exposes the event sink over gRPC. Requests and responses are
// google.protobuf.Struct messages shaped like the HTTP sink's JSON bodies.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/internal/sink"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

const (
	// ServiceName is the fully qualified service name.
	ServiceName = "blog.events.v1.EventLog"

	// LogMethod is the full method name of EventLog.Log.
	LogMethod = "/" + ServiceName + "/Log"

	requestIDHeader = "x-request-id"
)

// EventLogServer is the server API for the EventLog service.
type EventLogServer interface {
	Log(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the EventLog service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventLogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Log",
			Handler:    logHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blog/events/v1/eventlog.proto",
}

func logHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EventLogServer).Log(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LogMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EventLogServer).Log(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv EventLogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// EventLogService implements EventLogServer over the sink core.
type EventLogService struct {
	sink   *sink.Sink
	logger *slog.Logger
}

// NewEventLogService creates the gRPC sink service.
func NewEventLogService(s *sink.Sink, logger *slog.Logger) *EventLogService {
	return &EventLogService{sink: s, logger: observability.OrDiscard(logger)}
}

// Log accepts one event record. The response carries success and either data
// (the stored rows) or message (storage not configured).
func (s *EventLogService) Log(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)
	grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

	rec, err := RecordFromStruct(req)
	if err != nil {
		s.sink.Metrics().Rejected(observability.ReasonMalformedBody)
		return nil, status.Errorf(codes.InvalidArgument, "invalid event record: %v", err)
	}

	res, err := s.sink.Accept(ctx, rec)
	if err != nil {
		return nil, s.statusFor(err, requestID)
	}

	body := map[string]interface{}{"success": true}
	if res.Persisted {
		data, err := toValue(res.Rows)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode rows: %v", err)
		}
		body["data"] = data
	} else {
		body["message"] = res.Message
	}

	resp, err := structpb.NewStruct(body)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

func (s *EventLogService) statusFor(err error, requestID string) error {
	var be *blogerrors.BlogError
	if !errors.As(err, &be) {
		s.logger.Error("unexpected sink error",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		return status.Error(codes.Internal, "Internal server error")
	}

	switch be.Category {
	case blogerrors.ErrCategoryValidation:
		return status.Error(codes.InvalidArgument, be.Message)
	case blogerrors.ErrCategoryStorage:
		if be.Cause != nil {
			return status.Errorf(codes.Internal, "%s: %s", be.Message, be.Cause.Error())
		}
		return status.Error(codes.Internal, be.Message)
	default:
		return status.Error(codes.Internal, "Internal server error")
	}
}

// RecordFromStruct decodes an event record from its Struct form, which uses
// the same field names as the JSON body of POST /api/log.
func RecordFromStruct(s *structpb.Struct) (types.EventRecord, error) {
	var rec types.EventRecord
	if s == nil {
		return rec, nil
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// StructFromRecord encodes rec for an EventLog request.
func StructFromRecord(rec types.EventRecord) (*structpb.Struct, error) {
	v, err := toValue(rec)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("event record encoded as %T", v)
	}
	return structpb.NewStruct(m)
}

// toValue converts v into the generic JSON shape structpb accepts.
func toValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}

// Client calls the EventLog service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates an EventLog client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Log sends rec and returns the service's response.
func (c *Client) Log(ctx context.Context, rec types.EventRecord, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := StructFromRecord(rec)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LogMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
