package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler serves one Struct-in, Struct-out unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc builds a descriptor for service whose methods are the keys of
// handlers (short names, e.g. "SignOut"). Register it with
// grpc.Server.RegisterService(desc, nil).
func ServiceDesc(service string, handlers map[string]Handler) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
	}
	for name, h := range handlers {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler("/"+service+"/"+name, h),
		})
	}
	return desc
}

func unaryHandler(fullMethod string, h Handler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}
