package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
)

// Serve runs gRPC and the HTTP side on one listener until ctx is done.
// gRPC connections are told apart by their content-type, which covers the
// application/grpc+json subtype used by Client.
func Serve(ctx context.Context, ln net.Listener, s *Server, opts ...grpc.ServerOption) error {
	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.HTTP1Fast())

	g := grpc.NewServer(opts...)
	s.Register(g)
	hs := &http.Server{Handler: s.HTTPHandler(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 3)
	go func() { errc <- g.Serve(grpcL) }()
	go func() { errc <- hs.Serve(httpL) }()
	go func() { errc <- m.Serve() }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed) {
			err = nil
		}
	}

	g.Stop()
	_ = hs.Close()
	_ = ln.Close()
	s.logger.Debug("rpc server stopped", "err", err)
	return err
}

// LogInterceptor logs every unary call at debug level.
func LogInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc", "method", info.FullMethod, "duration", time.Since(start), "err", err)
		return resp, err
	}
}
