package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/dropshelf/internal/message"
)

// Dialer opens the local transport. The address argument is ignored.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Client talks to a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient returns a client that reaches the daemon through dial. The
// connection is made lazily on the first call.
func NewClient(dial Dialer, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dial),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient("passthrough:///dropshelf", opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func call[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) List(ctx context.Context, req *message.ListRequest) (*message.ListResponse, error) {
	return call[message.ListResponse](ctx, c, "List", req)
}

func (c *Client) Add(ctx context.Context, req *message.AddRequest) (*message.ItemResponse, error) {
	return call[message.ItemResponse](ctx, c, "Add", req)
}

func (c *Client) Drop(ctx context.Context, req *message.DropRequest) (*message.DropResponse, error) {
	return call[message.DropResponse](ctx, c, "Drop", req)
}

func (c *Client) ToggleFavorite(ctx context.Context, id string) (*message.ItemResponse, error) {
	return call[message.ItemResponse](ctx, c, "ToggleFavorite", &message.ItemRef{ID: id})
}

func (c *Client) Remove(ctx context.Context, req *message.RemoveRequest) (*message.RemoveResponse, error) {
	return call[message.RemoveResponse](ctx, c, "Remove", req)
}

func (c *Client) DeleteBatch(ctx context.Context, ids []string) (*message.CountResponse, error) {
	return call[message.CountResponse](ctx, c, "DeleteBatch", &message.DeleteBatchRequest{IDs: ids})
}

func (c *Client) Undo(ctx context.Context) (*message.CountResponse, error) {
	return call[message.CountResponse](ctx, c, "Undo", &message.Empty{})
}

func (c *Client) Clear(ctx context.Context) (*message.CountResponse, error) {
	return call[message.CountResponse](ctx, c, "Clear", &message.Empty{})
}

func (c *Client) Move(ctx context.Context, id string, index int) error {
	_, err := call[message.Empty](ctx, c, "Move", &message.MoveRequest{ID: id, Index: index})
	return err
}

func (c *Client) Sort(ctx context.Context, req *message.SortRequest) error {
	_, err := call[message.Empty](ctx, c, "Sort", req)
	return err
}

func (c *Client) Use(ctx context.Context, id string, action message.UseAction) (*message.ItemResponse, error) {
	return call[message.ItemResponse](ctx, c, "Use", &message.UseRequest{ID: id, Action: action})
}

func (c *Client) SetTags(ctx context.Context, id string, tags []string) (*message.ItemResponse, error) {
	return call[message.ItemResponse](ctx, c, "SetTags", &message.SetTagsRequest{ID: id, Tags: tags})
}

func (c *Client) Resolve(ctx context.Context, content string) (*message.ResolveResponse, error) {
	return call[message.ResolveResponse](ctx, c, "Resolve", &message.ResolveRequest{Content: content})
}

func (c *Client) History(ctx context.Context) (*message.HistoryResponse, error) {
	return call[message.HistoryResponse](ctx, c, "History", &message.Empty{})
}

func (c *Client) ClearHistory(ctx context.Context) (*message.CountResponse, error) {
	return call[message.CountResponse](ctx, c, "ClearHistory", &message.Empty{})
}

func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := call[message.ExportResponse](ctx, c, "Export", &message.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Import(ctx context.Context, data []byte) (*message.CountResponse, error) {
	return call[message.CountResponse](ctx, c, "Import", &message.ImportRequest{Data: data})
}

func (c *Client) Show(ctx context.Context) error {
	_, err := call[message.Empty](ctx, c, "Show", &message.Empty{})
	return err
}

func (c *Client) Toggle(ctx context.Context) error {
	_, err := call[message.Empty](ctx, c, "Toggle", &message.Empty{})
	return err
}

func (c *Client) Status(ctx context.Context) (*message.StatusResponse, error) {
	return call[message.StatusResponse](ctx, c, "Status", &message.Empty{})
}

// Watch streams events to fn until ctx is done, the daemon goes away or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, fn func(message.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&message.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var ev message.Event
		if err := stream.RecvMsg(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
