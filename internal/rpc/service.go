// Package rpc implements the dropshelf.v1.Shelf gRPC service and its client.
//
// There is no generated code: the service descriptor below is written by
// hand and messages are the plain structs in internal/message, carried by
// a JSON codec. Every handler does its work inside hub.Do so the store is
// only ever touched by the hub goroutine.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/hub"
	"go.klb.dev/dropshelf/internal/launch"
	"go.klb.dev/dropshelf/internal/message"
	"go.klb.dev/dropshelf/internal/shelf"
	"go.klb.dev/dropshelf/internal/shell"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "dropshelf.v1.Shelf"

var errInvalid = errors.New("invalid argument")

// Info describes the running daemon for Status.
type Info struct {
	Version   string
	DataDir   string
	Backend   string
	StartedAt time.Time
}

// Resolver describes paths and shell identifiers for Resolve.
type Resolver interface {
	Resolve(id string) shell.Resolution
}

// Server implements the Shelf service on top of a hub.
type Server struct {
	h        *hub.Hub
	resolver Resolver
	info     Info
	logger   *slog.Logger
	watchSeq atomic.Uint64
}

// NewServer returns a Server. resolver may be nil, in which case Resolve
// falls back to the last path segment.
func NewServer(h *hub.Hub, resolver Resolver, info Info, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	return &Server{h: h, resolver: resolver, info: info, logger: logger}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(g *grpc.Server) { g.RegisterService(&serviceDesc, s) }

// List implements Shelf.List.
func (s *Server) List(ctx context.Context, req *message.ListRequest) (*message.ListResponse, error) {
	v, err := viewOf(req)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &message.ListResponse{}
	err = s.h.Do(ctx, func(st *hub.State) error {
		resp.Items = message.FromShelfItems(st.Store.Snapshot(v))
		resp.Total = st.Store.Len()
		resp.UndoDepth = st.Store.UndoDepth()
		return nil
	})
	return resp, toStatus(err)
}

func viewOf(req *message.ListRequest) (shelf.View, error) {
	v := shelf.View{Tab: req.Tab, Query: req.Query}
	switch v.Tab {
	case "":
		v.Tab = shelf.TabAll
	case shelf.TabAll, shelf.TabFavorites:
	default:
		return v, fmt.Errorf("%w: unknown tab %q", errInvalid, req.Tab)
	}
	if req.Kind != "" {
		k, err := shelf.ParseKind(string(req.Kind))
		if err != nil {
			return v, fmt.Errorf("%w: %v", errInvalid, err)
		}
		v.Kind = k
	}
	if req.Sort != "" {
		key, err := shelf.ParseSortKey(req.Sort)
		if err != nil {
			return v, fmt.Errorf("%w: %v", errInvalid, err)
		}
		v.Sort = key
		v.Ascending = key.DefaultAscending()
		if req.Ascending != nil {
			v.Ascending = *req.Ascending
		}
	}
	return v, nil
}

// Add implements Shelf.Add. An empty kind is inferred from the content.
func (s *Server) Add(ctx context.Context, req *message.AddRequest) (*message.ItemResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, toStatus(fmt.Errorf("%w: empty content", errInvalid))
	}
	kind := req.Kind
	if kind == "" {
		kind = inferKind(content)
	} else if _, err := shelf.ParseKind(string(kind)); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalid, err))
	}

	resp := &message.ItemResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		opts := []shelf.AddOption{shelf.WithTags(req.Tags...)}
		if req.Favorite {
			opts = append(opts, shelf.WithFavorite(true))
		}
		// Shell objects that are not plain paths need a name captured now.
		if kind == shelf.KindFile && !exists(content) {
			if res := s.resolve(content); res.Source != shell.SourceName {
				opts = append(opts, shelf.WithDisplayName(res.DisplayName))
			}
		}
		it, ok := st.Store.Add(kind, content, opts...)
		if !ok {
			return fmt.Errorf("%w: empty content", errInvalid)
		}
		st.History.Record(kind, content)
		st.WantTitle(it)
		st.Touch()
		resp.Item = message.FromShelf(it)
		return nil
	})
	return resp, toStatus(err)
}

func inferKind(content string) shelf.Kind {
	if k := decode.Classify(content); k == shelf.KindURL {
		return k
	}
	if strings.HasPrefix(content, "::{") {
		return shelf.KindFile
	}
	if exists(content) {
		return shelf.KindFile
	}
	return shelf.KindText
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Drop implements Shelf.Drop: a native drag payload is decoded exactly like
// a clipboard change, without repeated-text suppression.
func (s *Server) Drop(ctx context.Context, req *message.DropRequest) (*message.DropResponse, error) {
	if len(req.Formats) == 0 {
		return nil, toStatus(fmt.Errorf("%w: no formats", errInvalid))
	}
	p := make(decode.MapPayload, len(req.Formats))
	for f, b := range req.Formats {
		p[decode.Format(f)] = b
	}
	added, err := s.h.Ingest(ctx, p, decode.SourceDrop)
	if err != nil {
		return nil, toStatus(err)
	}
	return &message.DropResponse{Items: message.FromShelfItems(added)}, nil
}

// ToggleFavorite implements Shelf.ToggleFavorite.
func (s *Server) ToggleFavorite(ctx context.Context, req *message.ItemRef) (*message.ItemResponse, error) {
	resp := &message.ItemResponse{}
	err := s.withItem(ctx, req.ID, func(st *hub.State, it shelf.Item) error {
		out, err := st.Store.ToggleFavorite(it.Key())
		if err != nil {
			return err
		}
		resp.Item = message.FromShelf(out)
		return nil
	})
	return resp, toStatus(err)
}

// Remove implements Shelf.Remove with the tab-dependent removal policy.
func (s *Server) Remove(ctx context.Context, req *message.RemoveRequest) (*message.RemoveResponse, error) {
	tab := req.Tab
	if tab == "" {
		tab = shelf.TabAll
	}
	resp := &message.RemoveResponse{}
	err := s.withItem(ctx, req.ID, func(st *hub.State, it shelf.Item) error {
		r, err := st.Store.RequestRemoval(it.Key(), tab)
		if err != nil {
			return err
		}
		resp.Removal = r.String()
		return nil
	})
	return resp, toStatus(err)
}

// DeleteBatch implements Shelf.DeleteBatch. Unknown ids are skipped.
func (s *Server) DeleteBatch(ctx context.Context, req *message.DeleteBatchRequest) (*message.CountResponse, error) {
	resp := &message.CountResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		keys := make([]shelf.Key, 0, len(req.IDs))
		for _, id := range req.IDs {
			if it, ok := st.Store.Get(id); ok {
				keys = append(keys, it.Key())
			}
		}
		resp.Count = st.Store.DeleteBatch(keys)
		if resp.Count > 0 {
			st.Touch()
		}
		return nil
	})
	return resp, toStatus(err)
}

// Undo implements Shelf.Undo.
func (s *Server) Undo(ctx context.Context, _ *message.Empty) (*message.CountResponse, error) {
	resp := &message.CountResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		resp.Count = st.Store.UndoLast()
		if resp.Count > 0 {
			st.Touch()
		}
		return nil
	})
	return resp, toStatus(err)
}

// Clear implements Shelf.Clear.
func (s *Server) Clear(ctx context.Context, _ *message.Empty) (*message.CountResponse, error) {
	resp := &message.CountResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		resp.Count = st.Store.Clear()
		st.Touch()
		return nil
	})
	return resp, toStatus(err)
}

// Move implements Shelf.Move.
func (s *Server) Move(ctx context.Context, req *message.MoveRequest) (*message.Empty, error) {
	err := s.withItem(ctx, req.ID, func(st *hub.State, it shelf.Item) error {
		return st.Store.Move(it.Key(), req.Index)
	})
	return &message.Empty{}, toStatus(err)
}

// Sort implements Shelf.Sort, reordering the shelf itself.
func (s *Server) Sort(ctx context.Context, req *message.SortRequest) (*message.Empty, error) {
	key, err := shelf.ParseSortKey(req.Key)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalid, err))
	}
	asc := key.DefaultAscending()
	if req.Ascending != nil {
		asc = *req.Ascending
	}
	err = s.h.Do(ctx, func(st *hub.State) error {
		st.Touch()
		return st.Store.Sort(key, asc)
	})
	return &message.Empty{}, toStatus(err)
}

// Use implements Shelf.Use: the item's primary action. Copying puts the
// content back on the clipboard without re-ingesting it as new text.
func (s *Server) Use(ctx context.Context, req *message.UseRequest) (*message.ItemResponse, error) {
	action := req.Action
	if action == "" {
		action = message.UseCopy
	}
	resp := &message.ItemResponse{}
	err := s.withItem(ctx, req.ID, func(st *hub.State, it shelf.Item) error {
		switch action {
		case message.UseCopy:
			if st.Clipboard == nil {
				return fmt.Errorf("%w: no clipboard", errUnavailable)
			}
			if err := st.Clipboard.Write(it.Kind, it.Content); err != nil {
				return fmt.Errorf("%w: %v", errUnavailable, err)
			}
			if it.Kind != shelf.KindFile {
				st.Decoder.SetLastText(it.Content)
			}
		case message.UseOpen:
			if err := launch.Open(it.Kind, it.Content); err != nil {
				return err
			}
		case message.UseReveal:
			if it.Kind != shelf.KindFile {
				return fmt.Errorf("%w: only files can be revealed", errInvalid)
			}
			if err := launch.Reveal(it.Content); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown action %q", errInvalid, action)
		}
		out, err := st.Store.MarkUsed(it.Key())
		if err != nil {
			return err
		}
		resp.Item = message.FromShelf(out)
		return nil
	})
	return resp, toStatus(err)
}

// SetTags implements Shelf.SetTags.
func (s *Server) SetTags(ctx context.Context, req *message.SetTagsRequest) (*message.ItemResponse, error) {
	resp := &message.ItemResponse{}
	err := s.withItem(ctx, req.ID, func(st *hub.State, it shelf.Item) error {
		out, err := st.Store.SetTags(it.Key(), req.Tags)
		if err != nil {
			return err
		}
		resp.Item = message.FromShelf(out)
		return nil
	})
	return resp, toStatus(err)
}

// Resolve implements Shelf.Resolve.
func (s *Server) Resolve(ctx context.Context, req *message.ResolveRequest) (*message.ResolveResponse, error) {
	content := shell.Sanitize(req.Content)
	if content == "" {
		return nil, toStatus(fmt.Errorf("%w: empty content", errInvalid))
	}
	resp := &message.ResolveResponse{}
	err := s.h.Do(ctx, func(*hub.State) error {
		res := s.resolve(content)
		resp.DisplayName = res.DisplayName
		resp.TypeName = res.TypeName
		resp.Source = string(res.Source)
		if res.Icon != nil && len(res.Icon.PNG) > 0 {
			resp.HasIcon = true
			resp.Icon = res.Icon.PNG
		}
		if !strings.HasPrefix(content, "::{") {
			resp.Info = shell.InfoLine(content)
		}
		return nil
	})
	return resp, toStatus(err)
}

func (s *Server) resolve(id string) shell.Resolution {
	if s.resolver == nil {
		return shell.Resolution{DisplayName: shell.LastSegment(id), Source: shell.SourceName}
	}
	return s.resolver.Resolve(id)
}

// History implements Shelf.History.
func (s *Server) History(ctx context.Context, _ *message.Empty) (*message.HistoryResponse, error) {
	resp := &message.HistoryResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		resp.Entries = st.History.Entries()
		resp.Cap = st.History.Cap()
		return nil
	})
	return resp, toStatus(err)
}

// ClearHistory implements Shelf.ClearHistory.
func (s *Server) ClearHistory(ctx context.Context, _ *message.Empty) (*message.CountResponse, error) {
	resp := &message.CountResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		resp.Count = st.History.Len()
		st.History.Clear()
		return nil
	})
	return resp, toStatus(err)
}

// Export implements Shelf.Export.
func (s *Server) Export(ctx context.Context, _ *message.Empty) (*message.ExportResponse, error) {
	var buf bytes.Buffer
	err := s.h.Do(ctx, func(st *hub.State) error { return st.Store.Export(&buf) })
	if err != nil {
		return nil, toStatus(err)
	}
	return &message.ExportResponse{Data: buf.Bytes()}, nil
}

// Import implements Shelf.Import.
func (s *Server) Import(ctx context.Context, req *message.ImportRequest) (*message.CountResponse, error) {
	resp := &message.CountResponse{}
	err := s.h.Do(ctx, func(st *hub.State) error {
		n, err := st.Store.Import(bytes.NewReader(req.Data))
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalid, err)
		}
		resp.Count = n
		if n > 0 {
			st.Touch()
		}
		return nil
	})
	return resp, toStatus(err)
}

// Show implements Shelf.Show.
func (s *Server) Show(context.Context, *message.Empty) (*message.Empty, error) {
	s.h.Post(hub.ShowRequested{})
	return &message.Empty{}, nil
}

// Toggle implements Shelf.Toggle, the hotkey action.
func (s *Server) Toggle(context.Context, *message.Empty) (*message.Empty, error) {
	s.h.Post(hub.HotkeyPressed{})
	return &message.Empty{}, nil
}

// Status implements Shelf.Status.
func (s *Server) Status(ctx context.Context, _ *message.Empty) (*message.StatusResponse, error) {
	resp := &message.StatusResponse{
		Version:    s.info.Version,
		PID:        os.Getpid(),
		StartedAt:  s.info.StartedAt,
		DataDir:    s.info.DataDir,
		Backend:    s.info.Backend,
		Monitoring: s.h.Monitoring(),
		Watchers:   s.h.Listeners(),
	}
	err := s.h.Do(ctx, func(st *hub.State) error {
		for _, it := range st.Store.Items() {
			if it.Favorite {
				resp.Favorites++
			}
			if it.HiddenFromMain {
				resp.Hidden++
			}
		}
		resp.Items = st.Store.Len()
		resp.UndoDepth = st.Store.UndoDepth()
		resp.History = st.History.Len()
		resp.HistoryCap = st.History.Cap()
		return nil
	})
	return resp, toStatus(err)
}

// Watch implements Shelf.Watch.
func (s *Server) Watch(_ *message.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	w := &watcher{
		id:     addrFromCtx(ctx) + "/watch/" + strconv.FormatUint(s.watchSeq.Add(1), 10),
		ch:     make(chan hub.Event, 16),
		logger: s.logger,
	}
	s.h.Register(w)
	defer s.h.Unregister(w)

	s.logger.Info("watch started", "watcher", w.id)
	defer s.logger.Info("watch ended", "watcher", w.id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.ch:
			out := &message.Event{Type: message.EventType(ev.Type), Items: message.FromShelfItems(ev.Added)}
			if len(out.Items) == 0 {
				out.Items = nil
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}

func (s *Server) withItem(ctx context.Context, id string, fn func(*hub.State, shelf.Item) error) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: missing id", errInvalid)
	}
	return s.h.Do(ctx, func(st *hub.State) error {
		it, ok := st.Store.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", shelf.ErrNotFound, id)
		}
		if err := fn(st, it); err != nil {
			return err
		}
		st.Touch()
		return nil
	})
}

var errUnavailable = errors.New("unavailable")

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, shelf.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errInvalid):
		code = codes.InvalidArgument
	case errors.Is(err, launch.ErrMissing):
		code = codes.FailedPrecondition
	case errors.Is(err, errUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil && p.Addr.String() != "" {
		return p.Addr.String()
	}
	return "local"
}

// watcher is a transient hub.Listener backed by a Watch stream.
type watcher struct {
	id     string
	ch     chan hub.Event
	logger *slog.Logger
}

func (w *watcher) ID() string { return w.id }

func (w *watcher) Send(ev hub.Event) {
	select {
	case w.ch <- ev:
	default:
		w.logger.Warn("watch channel full, dropping", "watcher", w.id)
	}
}
