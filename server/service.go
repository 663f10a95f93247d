package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "scootnes.Debugger"

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type debuggerServer interface {
	GetCPUState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReadMemory(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.UInt32Value, error)
	ReadMemoryBlock(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	GetFrame(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Disassemble(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	Pause(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Step(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	SaveState(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	LoadState(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// unary builds the method descriptor for a Server method, decoding the
// request into the message newReq returns.
func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(*Server, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	handler := func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return call(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(Req))
		})
	}
	return grpc.MethodDesc{MethodName: name, Handler: handler}
}

func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }
func newStruct() *structpb.Struct        { return new(structpb.Struct) }
func newUInt32() *wrapperspb.UInt32Value { return new(wrapperspb.UInt32Value) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*debuggerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCPUState", newEmpty, (*Server).GetCPUState),
		unary("ReadMemory", newUInt32, (*Server).ReadMemory),
		unary("ReadMemoryBlock", newStruct, (*Server).ReadMemoryBlock),
		unary("GetFrame", newEmpty, (*Server).GetFrame),
		unary("Disassemble", newStruct, (*Server).Disassemble),
		unary("Pause", newEmpty, (*Server).Pause),
		unary("Resume", newEmpty, (*Server).Resume),
		unary("Step", newEmpty, (*Server).Step),
		unary("Reset", newEmpty, (*Server).Reset),
		unary("SaveState", newString, (*Server).SaveState),
		unary("LoadState", newString, (*Server).LoadState),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "StreamInput",
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*Server).streamInput(stream)
			},
			ClientStreams: true,
		},
	},
	Metadata: "scootnes/debugger.proto",
}
