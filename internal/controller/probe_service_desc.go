package controller

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The probe service speaks well-known protobuf types only, so it is described
// by hand instead of through generated stubs.
const (
	ProbeServiceName      = "spantrace.v1.ProbeService"
	ProbeServiceCheck     = "/" + ProbeServiceName + "/Check"
	ProbeServiceRecent    = "/" + ProbeServiceName + "/Recent"
	ProbeServiceWatch     = "/" + ProbeServiceName + "/Watch"
	probeServiceWatchName = "Watch"
)

type ProbeServiceServer interface {
	Check(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Recent(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error)
	Watch(in *emptypb.Empty, stream grpc.ServerStream) error
}

var ProbeServiceDesc = grpc.ServiceDesc{
	ServiceName: ProbeServiceName,
	HandlerType: (*ProbeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: checkHandler},
		{MethodName: "Recent", Handler: recentHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: probeServiceWatchName, Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "spantrace/v1/probe.proto",
}

func RegisterProbeServiceServer(s grpc.ServiceRegistrar, srv ProbeServiceServer) {
	s.RegisterService(&ProbeServiceDesc, srv)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProbeServiceServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProbeServiceCheck}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ProbeServiceServer).Check(ctx, req.(*emptypb.Empty))
	})
}

func recentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProbeServiceServer).Recent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProbeServiceRecent}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ProbeServiceServer).Recent(ctx, req.(*wrapperspb.Int32Value))
	})
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProbeServiceServer).Watch(in, stream)
}

// WatchStreamDesc is used by clients opening the Watch stream.
func WatchStreamDesc() *grpc.StreamDesc {
	return &ProbeServiceDesc.Streams[0]
}
