package api

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/types"
)

/*
 * gRPC query surface.
 *
 * logview.v1.QueryService/Query is server-streaming. Messages are
 * google.protobuf.Struct so no generated code is needed:
 *
 *   request  {"view": {...} | "name": "stored", "offset": N, "limit": N}
 *   response one Struct per kept record:
 *            {"text", "offset", "variables": {...}, "color"}
 *
 * The offset to resume from is returned in the "next-offset" trailer.
 */

// QueryServiceName is the fully-qualified gRPC service name.
const QueryServiceName = "logview.v1.QueryService"

// NextOffsetTrailer carries the resume offset of a finished Query stream.
const NextOffsetTrailer = "next-offset"

// QueryServer is the server API for the query service.
type QueryServer interface {
	Query(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

func queryStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(QueryServer).Query(req, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// QueryServiceDesc describes logview.v1.QueryService.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: QueryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Query",
			Handler:       queryStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "logview/v1/query.proto",
}

// RegisterQueryServer registers srv on s.
func RegisterQueryServer(s grpc.ServiceRegistrar, srv QueryServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

// QueryClient calls logview.v1.QueryService.
type QueryClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryClient creates a client over cc.
func NewQueryClient(cc grpc.ClientConnInterface) *QueryClient {
	return &QueryClient{cc: cc}
}

// Query starts a Query stream.
func (c *QueryClient) Query(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &QueryServiceDesc.Streams[0], "/"+QueryServiceName+"/Query", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// GRPCService implements QueryServer on top of a QueryService.
type GRPCService struct {
	svc *QueryService
}

// NewGRPCService creates the gRPC adapter.
func NewGRPCService(svc *QueryService) (*GRPCService, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	return &GRPCService{svc: svc}, nil
}

// Query streams the kept records of one run.
func (g *GRPCService) Query(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx, cancel := context.WithTimeout(stream.Context(), g.svc.cfg.RequestTimeout)
	defer cancel()

	fields := req.GetFields()
	view, err := g.requestView(ctx, fields)
	if err != nil {
		return grpcStatus(err)
	}
	offset, err := intField(fields, "offset")
	if err != nil {
		return grpcStatus(err)
	}
	limit, err := intField(fields, "limit")
	if err != nil {
		return grpcStatus(err)
	}

	var sent int64
	next, err := g.svc.Stream(ctx, view, offset, func(record *types.Record, _ int64) (bool, error) {
		msg, err := recordStruct(record)
		if err != nil {
			return false, err
		}
		if err := stream.Send(msg); err != nil {
			return false, err
		}
		sent++
		return limit == 0 || sent < limit, nil
	})
	stream.SetTrailer(metadata.Pairs(NextOffsetTrailer, strconv.FormatInt(next, 10)))
	if err != nil {
		return grpcStatus(err)
	}
	return nil
}

// requestView resolves exactly one of "view" (inline document) or "name"
// (stored view).
func (g *GRPCService) requestView(ctx context.Context, fields map[string]*structpb.Value) (*rules.View, error) {
	doc, hasView := fields["view"]
	name, hasName := fields["name"]
	switch {
	case hasView && hasName:
		return nil, fmt.Errorf("%w: set either view or name, not both", ErrBadRequest)
	case hasName:
		if _, ok := name.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, fmt.Errorf("%w: name must be a string", ErrBadRequest)
		}
		return g.svc.LoadStored(ctx, name.GetStringValue())
	case hasView:
		return rules.ParseViewValue(doc.AsInterface())
	default:
		return nil, fmt.Errorf("%w: missing view or name", ErrBadRequest)
	}
}

// intField reads an optional non-negative integer field.
func intField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, name)
	}
	n := num.NumberValue
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %v", ErrBadRequest, name, n)
	}
	return int64(n), nil
}

// recordStruct converts a record to its wire form (same shape as JSON).
func recordStruct(record *types.Record) (*structpb.Struct, error) {
	vars := make(map[string]any, len(record.Variables))
	for k, v := range record.Variables {
		vars[k] = v
	}

	color, err := record.Color.Wire()
	if err != nil {
		return nil, err
	}

	return structpb.NewStruct(map[string]any{
		"text":      record.Text,
		"offset":    float64(record.Offset),
		"variables": vars,
		"color":     color,
	})
}
