package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/dropshelf/internal/ipc"
	"go.klb.dev/dropshelf/internal/rpc"
)

const callTimeout = 10 * time.Second

// newClient returns a client for the daemon on the local socket.
// No auth needed: the socket is local and owner-restricted by the OS.
func newClient() (*rpc.Client, error) {
	return rpc.NewClient(ipc.DialContext)
}

// withClient runs fn against the daemon with a bounded context and turns
// gRPC errors into plain messages.
func withClient(fn func(ctx context.Context, c *rpc.Client) error) error {
	if !ipc.IsRunning() {
		return fmt.Errorf("dropshelf is not running (socket %s); start it with \"dropshelf serve\"", ipc.SocketPath())
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return plainError(fn(ctx, c))
}

func plainError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("not found: %s", st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("invalid: %s", st.Message())
	default:
		return fmt.Errorf("%s", st.Message())
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
