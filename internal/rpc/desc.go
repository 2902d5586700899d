package rpc

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/dropshelf/internal/message"
)

// shelfServer is the handler type checked by grpc.Server.RegisterService.
type shelfServer interface {
	Status(context.Context, *message.Empty) (*message.StatusResponse, error)
	Watch(*message.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*shelfServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("List", (*Server).List),
		unary("Add", (*Server).Add),
		unary("Drop", (*Server).Drop),
		unary("ToggleFavorite", (*Server).ToggleFavorite),
		unary("Remove", (*Server).Remove),
		unary("DeleteBatch", (*Server).DeleteBatch),
		unary("Undo", (*Server).Undo),
		unary("Clear", (*Server).Clear),
		unary("Move", (*Server).Move),
		unary("Sort", (*Server).Sort),
		unary("Use", (*Server).Use),
		unary("SetTags", (*Server).SetTags),
		unary("Resolve", (*Server).Resolve),
		unary("History", (*Server).History),
		unary("ClearHistory", (*Server).ClearHistory),
		unary("Export", (*Server).Export),
		unary("Import", (*Server).Import),
		unary("Show", (*Server).Show),
		unary("Toggle", (*Server).Toggle),
		unary("Status", (*Server).Status),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "dropshelf/v1/shelf",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary adapts a typed handler to grpc.MethodDesc, the way generated code
// does for each method.
func unary[Req, Resp any](name string, fn func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(message.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(*Server).Watch(in, stream)
}
