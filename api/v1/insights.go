// Package v1 declares the rfm.insights.v1.Insights gRPC service. Requests and
// responses are protobuf well-known types, so the service and file
// descriptors are written by hand instead of generated from a .proto file.
// The file descriptor is registered globally so server reflection can
// describe every method.
package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "rfm.insights.v1.Insights"

const (
	Insights_GetKPIs_FullMethodName     = "/" + ServiceName + "/GetKPIs"
	Insights_ListQueries_FullMethodName = "/" + ServiceName + "/ListQueries"
	Insights_RunQuery_FullMethodName    = "/" + ServiceName + "/RunQuery"
	Insights_GetSegments_FullMethodName = "/" + ServiceName + "/GetSegments"
	Insights_CheckAlerts_FullMethodName = "/" + ServiceName + "/CheckAlerts"
)

// InsightsServer is the server API for the Insights service.
type InsightsServer interface {
	GetKPIs(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListQueries(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	RunQuery(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetSegments(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CheckAlerts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedInsightsServer can be embedded to have forward compatible
// implementations.
type UnimplementedInsightsServer struct{}

func (UnimplementedInsightsServer) GetKPIs(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetKPIs not implemented")
}

func (UnimplementedInsightsServer) ListQueries(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ListQueries not implemented")
}

func (UnimplementedInsightsServer) RunQuery(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method RunQuery not implemented")
}

func (UnimplementedInsightsServer) GetSegments(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSegments not implemented")
}

func (UnimplementedInsightsServer) CheckAlerts(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckAlerts not implemented")
}

func RegisterInsightsServer(s grpc.ServiceRegistrar, srv InsightsServer) {
	s.RegisterService(&Insights_ServiceDesc, srv)
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req any](fullMethod string, newReq func() Req, call func(InsightsServer, context.Context, Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InsightsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(InsightsServer), ctx, req.(Req))
		})
	}
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

// Insights_ServiceDesc is the grpc.ServiceDesc for the Insights service.
var Insights_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InsightsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetKPIs",
			Handler: unary(Insights_GetKPIs_FullMethodName, newEmpty, func(s InsightsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetKPIs(ctx, in)
			}),
		},
		{
			MethodName: "ListQueries",
			Handler: unary(Insights_ListQueries_FullMethodName, newEmpty, func(s InsightsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ListQueries(ctx, in)
			}),
		},
		{
			MethodName: "RunQuery",
			Handler: unary(Insights_RunQuery_FullMethodName, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, func(s InsightsServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.RunQuery(ctx, in)
			}),
		},
		{
			MethodName: "GetSegments",
			Handler: unary(Insights_GetSegments_FullMethodName, newEmpty, func(s InsightsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetSegments(ctx, in)
			}),
		},
		{
			MethodName: "CheckAlerts",
			Handler: unary(Insights_CheckAlerts_FullMethodName, newEmpty, func(s InsightsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.CheckAlerts(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: FileName,
}

// InsightsClient is the client API for the Insights service.
type InsightsClient interface {
	GetKPIs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListQueries(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	RunQuery(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSegments(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckAlerts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type insightsClient struct {
	cc grpc.ClientConnInterface
}

func NewInsightsClient(cc grpc.ClientConnInterface) InsightsClient {
	return &insightsClient{cc}
}

func (c *insightsClient) GetKPIs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Insights_GetKPIs_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *insightsClient) ListQueries(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, Insights_ListQueries_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *insightsClient) RunQuery(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Insights_RunQuery_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *insightsClient) GetSegments(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Insights_GetSegments_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *insightsClient) CheckAlerts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Insights_CheckAlerts_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
