// Package watcher turns clipboard backend notifications into change signals.
// It does no reading or filtering of its own; classification happens where
// the signal is handled.
package watcher

import (
	"context"
	"log/slog"

	"go.klb.dev/dropshelf/internal/clip"
)

// Sink receives change signals. It must not block.
type Sink interface {
	ClipboardChanged()
}

// Watcher forwards backend changes to a Sink.
type Watcher struct {
	backend clip.Backend
	sink    Sink
	logger  *slog.Logger
}

// New creates a watcher but does not start it.
func New(backend clip.Backend, sink Sink, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{backend: backend, sink: sink, logger: logger}
}

// OnChange reports one clipboard change.
func (w *Watcher) OnChange() { w.sink.ClipboardChanged() }

// Run forwards changes until ctx is done. Polling and native backends look
// the same from here on.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("clipboard watcher started", "backend", w.backend.Name())
	defer w.logger.Debug("clipboard watcher stopped")

	changes := w.backend.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			w.logger.Debug("clipboard changed")
			w.OnChange()
		}
	}
}
