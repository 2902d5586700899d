//go:build darwin

package clip

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/progrium/darwinkit/macos/appkit"
	"golang.design/x/clipboard"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/shelf"
)

const darwinPollInterval = 100 * time.Millisecond

const (
	pbTypeText    = appkit.PasteboardType("public.utf8-plain-text")
	pbTypeFileURL = appkit.PasteboardType("public.file-url")
)

type darwinBackend struct {
	mu         sync.Mutex
	pasteboard appkit.Pasteboard
	lastChange int
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that never construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	pb := appkit.Pasteboard_GeneralPasteboard()
	b := &darwinBackend{
		pasteboard: pb,
		lastChange: pb.ChangeCount(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			b.mu.Lock()
			cc := b.pasteboard.ChangeCount()
			changed := cc != b.lastChange
			b.lastChange = cc
			b.mu.Unlock()
			if changed {
				notify(b.watchCh)
			}
		}
	}
}

func (b *darwinBackend) Read() (decode.Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := decode.MapPayload{}
	for _, t := range b.pasteboard.Types() {
		switch t {
		case pbTypeFileURL:
			if s := b.pasteboard.StringForType(pbTypeFileURL); s != "" {
				p[decode.FormatFileURL] = []byte(s)
			}
		case pbTypeText:
			if s := b.pasteboard.StringForType(pbTypeText); s != "" {
				p[decode.FormatText] = []byte(s)
			}
		}
	}
	if len(p) == 0 {
		return nil, nil
	}
	return p, nil
}

func (b *darwinBackend) Write(kind shelf.Kind, content string) error {
	if kind != shelf.KindFile {
		clipboard.Write(clipboard.FmtText, []byte(content))
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pasteboard.ClearContents()
	u := url.URL{Scheme: "file", Path: content}
	b.pasteboard.SetStringForType(u.String(), pbTypeFileURL)
	b.pasteboard.SetStringForType(content, pbTypeText)
	return nil
}

func (b *darwinBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *darwinBackend) Close()                { close(b.done) }
