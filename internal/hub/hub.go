// Package hub implements the single dispatcher that owns the shelf.
// It is transport-agnostic: the clipboard watcher and the RPC service post
// typed signals, listeners register and receive events via Send, and every
// read or write of the store, history and decoder happens on the goroutine
// running Run.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.klb.dev/dropshelf/internal/clip"
	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/history"
	"go.klb.dev/dropshelf/internal/shelf"
)

// Signal is anything the dispatcher loop accepts.
type Signal interface{ signal() }

// ClipboardChanged asks the hub to re-read the clipboard.
type ClipboardChanged struct{}

// HotkeyPressed toggles the shelf window.
type HotkeyPressed struct{}

// ShowRequested raises the shelf window, e.g. from a second instance.
type ShowRequested struct{}

// DragDropped carries a payload dropped onto the shelf.
type DragDropped struct{ Payload decode.Payload }

type call struct {
	fn   func(*State) error
	done chan error
}

type titleFetched struct {
	key   shelf.Key
	title string
	err   error
}

func (ClipboardChanged) signal() {}
func (HotkeyPressed) signal()    {}
func (ShowRequested) signal()    {}
func (DragDropped) signal()      {}
func (call) signal()             {}
func (titleFetched) signal()     {}

// EventType names what a listener is told about.
type EventType string

const (
	EventChanged EventType = "changed"
	EventToggle  EventType = "toggle"
	EventShow    EventType = "show"
)

// Event is delivered to every registered listener.
type Event struct {
	Type  EventType
	Added []shelf.Item
}

// Listener is anything that wants hub events.
type Listener interface {
	ID() string
	// Send delivers an event. Must be non-blocking.
	Send(Event)
}

// TitleFetcher looks up a page title for a URL item.
type TitleFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// State is what a call closure may touch. It is only valid for the duration
// of the call.
type State struct {
	Store     *shelf.Store
	History   *history.Log
	Decoder   *decode.Decoder
	Clipboard clip.Backend

	changed bool
	added   []shelf.Item
	titles  func(shelf.Key)
}

// Touch marks the shelf as changed so listeners are told once the current
// call returns.
func (s *State) Touch() { s.changed = true }

// WantTitle schedules a background page-title lookup for an unnamed URL
// item. The title is applied later through the hub.
func (s *State) WantTitle(it shelf.Item) {
	if s.titles != nil && it.Kind == shelf.KindURL && it.DisplayName == "" {
		s.titles(it.Key())
	}
}

// Hub serializes all access to State.
type Hub struct {
	state   *State
	in      chan Signal
	fetcher TitleFetcher
	logger  *slog.Logger

	monitoring atomic.Bool
	running    atomic.Bool
	runCtx     context.Context

	mu        sync.RWMutex
	listeners map[string]Listener
}

// Option configures a Hub.
type Option func(*Hub)

// WithTitleFetcher enables background title lookup for URL items.
func WithTitleFetcher(f TitleFetcher) Option { return func(h *Hub) { h.fetcher = f } }

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option { return func(h *Hub) { h.logger = l } }

// New returns a hub around state. Monitoring starts enabled. The text
// currently on the clipboard is recorded here, before any signal can be
// queued, so it is not ingested but a later change is.
func New(state *State, opts ...Option) *Hub {
	h := &Hub{
		state:     state,
		in:        make(chan Signal, 64),
		logger:    slog.Default(),
		runCtx:    context.Background(),
		listeners: make(map[string]Listener),
	}
	for _, o := range opts {
		o(h)
	}
	state.titles = h.fetchTitle
	h.monitoring.Store(true)
	h.prime()
	return h
}

// SetMonitoring gates clipboard ingestion. Drops are always accepted.
func (h *Hub) SetMonitoring(on bool) {
	if h.monitoring.Swap(on) != on {
		h.logger.Info("clipboard monitoring", "enabled", on)
	}
}

// Monitoring reports whether clipboard changes are ingested.
func (h *Hub) Monitoring() bool { return h.monitoring.Load() }

// Post queues sig without blocking. It reports false when the queue is full;
// a queued ClipboardChanged already covers a later one.
func (h *Hub) Post(sig Signal) bool {
	select {
	case h.in <- sig:
		return true
	default:
		h.logger.Warn("hub queue full, dropping signal")
		return false
	}
}

// ClipboardChanged implements watcher.Sink.
func (h *Hub) ClipboardChanged() { h.Post(ClipboardChanged{}) }

// Do runs fn on the dispatcher goroutine and returns its error.
func (h *Hub) Do(ctx context.Context, fn func(*State) error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case h.in <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest decodes p and adds the result to the shelf, returning the items
// that were added or refreshed.
func (h *Hub) Ingest(ctx context.Context, p decode.Payload, src decode.Source) ([]shelf.Item, error) {
	var added []shelf.Item
	err := h.Do(ctx, func(s *State) error {
		added = h.ingest(s, p, src)
		return nil
	})
	return added, err
}

// Register adds a listener.
func (h *Hub) Register(l Listener) {
	h.mu.Lock()
	h.listeners[l.ID()] = l
	total := len(h.listeners)
	h.mu.Unlock()
	h.logger.Debug("listener registered", "listener", l.ID(), "total", total)
}

// Unregister removes a listener.
func (h *Hub) Unregister(l Listener) {
	h.mu.Lock()
	delete(h.listeners, l.ID())
	total := len(h.listeners)
	h.mu.Unlock()
	h.logger.Debug("listener unregistered", "listener", l.ID(), "total", total)
}

// Listeners returns how many listeners are registered.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.RUnlock()

	for _, l := range targets {
		l.Send(ev)
	}
}

// Run is the dispatcher loop. It blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		h.logger.Error("hub already running")
		return
	}
	defer h.running.Store(false)
	h.runCtx = ctx

	h.logger.Info("hub started", "items", h.state.Store.Len(), "history", h.state.History.Len())
	defer h.logger.Debug("hub stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-h.in:
			h.handle(sig)
		}
	}
}

// prime records the text already on the clipboard so it is not ingested
// as if it had just been copied.
func (h *Hub) prime() {
	if h.state.Clipboard == nil {
		return
	}
	p, err := h.state.Clipboard.Read()
	if err != nil || p == nil {
		return
	}
	d := h.state.Decoder.Decode(p, decode.SourceClipboard)
	if d.Category == decode.CategoryText {
		h.logger.Debug("primed last clipboard text")
	}
}

func (h *Hub) handle(sig Signal) {
	s := h.state
	switch sig := sig.(type) {
	case ClipboardChanged:
		if !h.Monitoring() || s.Clipboard == nil {
			return
		}
		p, err := s.Clipboard.Read()
		if err != nil {
			h.logger.Warn("clipboard read failed", "err", err)
			return
		}
		if p == nil {
			return
		}
		h.ingest(s, p, decode.SourceClipboard)
	case DragDropped:
		if sig.Payload != nil {
			h.ingest(s, sig.Payload, decode.SourceDrop)
		}
	case HotkeyPressed:
		h.broadcast(Event{Type: EventToggle})
	case ShowRequested:
		h.broadcast(Event{Type: EventShow})
	case call:
		sig.done <- sig.fn(s)
	case titleFetched:
		h.applyTitle(s, sig)
	}
	h.flush(s)
}

func (h *Hub) flush(s *State) {
	if !s.changed {
		return
	}
	ev := Event{Type: EventChanged, Added: s.added}
	s.changed = false
	s.added = nil
	h.broadcast(ev)
}

func (h *Hub) ingest(s *State, p decode.Payload, src decode.Source) []shelf.Item {
	d := s.Decoder.Decode(p, src)
	if d.Category == decode.CategoryNone {
		return nil
	}
	var added []shelf.Item
	for _, e := range d.Entries {
		var opts []shelf.AddOption
		if e.DisplayName != "" {
			opts = append(opts, shelf.WithDisplayName(e.DisplayName))
		}
		it, ok := s.Store.Add(e.Kind, e.Content, opts...)
		if !ok {
			continue
		}
		s.History.Record(e.Kind, e.Content)
		added = append(added, it)
		s.WantTitle(it)
	}
	if len(added) == 0 {
		return nil
	}
	LogItems(h.logger, "ingested", src, d.Category, added)
	s.Touch()
	s.added = append(s.added, added...)
	return added
}

func (h *Hub) fetchTitle(k shelf.Key) {
	if h.fetcher == nil {
		return
	}
	ctx := h.runCtx
	go func() {
		title, err := h.fetcher.Fetch(ctx, k.Content)
		select {
		case h.in <- titleFetched{key: k, title: title, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (h *Hub) applyTitle(s *State, r titleFetched) {
	if r.err != nil {
		h.logger.Debug("title fetch failed", "url", r.key.Content, "err", r.err)
		return
	}
	it, ok := s.Store.Find(r.key)
	if !ok || it.DisplayName != "" || r.title == "" {
		return
	}
	if _, err := s.Store.SetDisplayName(r.key, r.title); err != nil {
		return
	}
	h.logger.Debug("title applied", "url", r.key.Content, "title", r.title)
	s.Touch()
}
