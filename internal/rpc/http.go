package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/dropshelf/internal/message"
	"go.klb.dev/dropshelf/internal/shelf"
)

// HTTPHandler serves the read-only HTTP/1 side of the socket, for curl and
// scripts that do not speak gRPC.
func (s *Server) HTTPHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)
	r.Get("/items", s.handleItems)
	r.Get("/export", s.handleExport)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Status(r.Context(), &message.Empty{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &message.ListRequest{
		Tab:   shelf.Tab(q.Get("tab")),
		Kind:  shelf.Kind(q.Get("kind")),
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	if a := q.Get("asc"); a != "" {
		asc, err := strconv.ParseBool(a)
		if err != nil {
			http.Error(w, "asc: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Ascending = &asc
	}
	resp, err := s.List(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Export(r.Context(), &message.Empty{})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dropshelf_items.json"`)
	_, _ = w.Write(resp.Data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http write failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.Canceled, codes.DeadlineExceeded:
		code = http.StatusServiceUnavailable
	}
	http.Error(w, status.Convert(err).Message(), code)
}
