// Package history keeps a bounded, append-only log of everything that was
// ingested, independent of the shelf.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.klb.dev/dropshelf/internal/atomicfile"
	"go.klb.dev/dropshelf/internal/shelf"
)

// FileName is the history file inside the data directory.
const FileName = "dropshelf_history.json"

const (
	// DefaultCap is the history size used when no setting overrides it.
	DefaultCap = 200
	// MaxCap is the largest accepted cap.
	MaxCap = 1000
)

// Entry is one recorded ingestion.
type Entry struct {
	Kind    shelf.Kind `json:"type"`
	Content string     `json:"content"`
	Time    time.Time  `json:"time"`
}

// UnmarshalJSON accepts naive ISO timestamps as written by older versions.
// An unreadable time is left zero.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var r struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Time    string `json:"time"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	e.Kind = shelf.Kind(r.Type)
	e.Content = r.Content
	e.Time, _ = shelf.ParseDate(r.Time)
	return nil
}

// Log is a FIFO of entries capped at Cap. Like shelf.Store it is owned by a
// single goroutine.
type Log struct {
	path    string
	cap     int
	entries []Entry
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option { return func(l *Log) { l.logger = lg } }

// ClampCap forces n into [0, MaxCap].
func ClampCap(n int) int { return min(max(n, 0), MaxCap) }

// New returns an empty log. An empty path keeps it in memory.
func New(path string, limit int, opts ...Option) *Log {
	l := &Log{
		path:   path,
		cap:    ClampCap(limit),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Open returns a log loaded from path; load failures are logged.
func Open(path string, limit int, opts ...Option) *Log {
	l := New(path, limit, opts...)
	if err := l.Load(); err != nil {
		l.logger.Error("history load failed, starting empty", "path", path, "err", err)
	}
	return l
}

// Cap returns the current cap.
func (l *Log) Cap() int { return l.cap }

// Record appends an entry and evicts the oldest ones beyond the cap.
// With a cap of 0 nothing is recorded.
func (l *Log) Record(kind shelf.Kind, content string) {
	if l.cap == 0 {
		return
	}
	l.entries = append(l.entries, Entry{Kind: kind, Content: content, Time: l.now()})
	l.truncate()
	l.save()
}

// SetCap applies a new cap immediately, dropping the oldest entries when it
// shrinks.
func (l *Log) SetCap(n int) {
	n = ClampCap(n)
	if n == l.cap {
		return
	}
	l.cap = n
	if len(l.entries) > n {
		l.truncate()
		l.save()
	}
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry { return slices.Clone(l.entries) }

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Clear drops every entry.
func (l *Log) Clear() {
	l.entries = nil
	l.save()
}

// Remove drops the entry at index i.
func (l *Log) Remove(i int) error {
	if i < 0 || i >= len(l.entries) {
		return fmt.Errorf("history index %d out of range [0,%d)", i, len(l.entries))
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	l.save()
	return nil
}

// Load replaces the log with the file contents, truncated to the cap.
func (l *Log) Load() error {
	if l.path == "" {
		return nil
	}
	var entries []Entry
	_, fromBackup, err := atomicfile.Read(l.path, func(b []byte) error {
		entries = nil
		return json.Unmarshal(b, &entries)
	})
	if errors.Is(err, atomicfile.ErrNoFile) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if fromBackup {
		l.logger.Warn("history file unreadable, loaded backup", "path", l.path)
	}
	l.entries = entries
	l.truncate()
	return nil
}

// Persist writes the log atomically.
func (l *Log) Persist() error {
	if l.path == "" {
		return nil
	}
	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	return atomicfile.WriteJSON(l.path, entries)
}

func (l *Log) truncate() {
	if over := len(l.entries) - l.cap; over > 0 {
		l.entries = slices.Delete(l.entries, 0, over)
	}
}

func (l *Log) save() {
	if err := l.Persist(); err != nil {
		l.logger.Error("history save failed", "path", l.path, "err", err)
	}
}
