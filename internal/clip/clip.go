// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   macOS via darwinkit NSPasteboard, changeCount polling
//	clip_windows.go Windows via user32 raw formats, sequence number polling
//	clip_linux.go    Linux via golang.design/x/clipboard, polling only
//	clip_other.go    headless / container stub
package clip

import (
	"strings"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/shelf"
)

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns every format currently on the clipboard that the decoder
	// understands. Returns nil, nil if the clipboard is empty.
	Read() (decode.Payload, error)

	// Write puts an item's content on the clipboard. Files are offered as a
	// file reference where the platform supports it, and as text.
	Write(kind shelf.Kind, content string) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. The channel is never closed. On platforms without native change
	// notification this is implemented via polling.
	// The caller should call Read() when it receives from the channel.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// notify performs a non-blocking send; a pending signal already covers the
// new change.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// textPayload wraps clipboard text. Text made only of file:// URIs is also
// offered as a uri-list, which is how most Linux file managers copy files.
func textPayload(text []byte) decode.Payload {
	if len(text) == 0 {
		return nil
	}
	p := decode.MapPayload{decode.FormatText: text}
	if isURIList(string(text)) {
		p[decode.FormatURIList] = text
	}
	return p
}

func isURIList(s string) bool {
	seen := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(line), "file://") {
			return false
		}
		seen = true
	}
	return seen
}
