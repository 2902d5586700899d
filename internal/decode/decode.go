// Package decode turns a native clipboard or drag-and-drop payload into
// shelf entries.
//
// Formats are grouped into categories tried in a fixed order; the first
// category that yields at least one entry wins and the rest are ignored:
//
//	files   CF_HDROP, text/uri-list, public.file-url
//	idlist  Shell IDList Array
//	text    text/plain;charset=utf-8, text/plain, CF_UNICODETEXT
package decode

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.klb.dev/dropshelf/internal/shell"
	"go.klb.dev/dropshelf/internal/shelf"
)

// Format names one native representation of a payload.
type Format string

const (
	FormatHDROP       Format = "CF_HDROP"
	FormatURIList     Format = "text/uri-list"
	FormatFileURL     Format = "public.file-url"
	FormatIDList      Format = "Shell IDList Array"
	FormatText        Format = "text/plain;charset=utf-8"
	FormatPlainText   Format = "text/plain"
	FormatUnicodeText Format = "CF_UNICODETEXT"
)

// Payload is a set of formats offered by a clipboard or drop source.
type Payload interface {
	Formats() []Format
	Data(f Format) ([]byte, error)
}

// MapPayload is a Payload backed by a map.
type MapPayload map[Format][]byte

// Formats returns the available formats in a stable order.
func (m MapPayload) Formats() []Format {
	out := make([]Format, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Data returns the bytes stored for f.
func (m MapPayload) Data(f Format) ([]byte, error) {
	b, ok := m[f]
	if !ok {
		return nil, fmt.Errorf("format %q not offered", f)
	}
	return b, nil
}

// Category identifies which group of formats produced a result.
type Category int

const (
	CategoryNone Category = iota
	CategoryFiles
	CategoryIDList
	CategoryText
)

func (c Category) String() string {
	switch c {
	case CategoryFiles:
		return "files"
	case CategoryIDList:
		return "idlist"
	case CategoryText:
		return "text"
	default:
		return "none"
	}
}

// Source says where a payload came from. Only clipboard payloads are
// subject to repeated-text suppression.
type Source int

const (
	SourceClipboard Source = iota
	SourceDrop
)

func (s Source) String() string {
	if s == SourceDrop {
		return "drop"
	}
	return "clipboard"
}

// Entry is one item to add to the shelf.
type Entry struct {
	Kind        shelf.Kind
	Content     string
	DisplayName string
}

// Decoded is the result of Decode. Callers branch on Category.
type Decoded struct {
	Category Category
	Entries  []Entry
}

// IDListResolver names absolute identifier lists.
type IDListResolver interface {
	ResolveIDList(list *shell.IDList) (parsingName string, res shell.Resolution, err error)
}

// Decoder holds the last clipboard text seen. Like the shelf it belongs to a
// single goroutine.
type Decoder struct {
	resolver IDListResolver
	logger   *slog.Logger
	lastText string
}

// New returns a decoder. resolver may be nil, in which case identifier lists
// are never decoded.
func New(resolver IDListResolver, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{resolver: resolver, logger: logger}
}

// LastText returns the most recent clipboard text.
func (d *Decoder) LastText() string { return d.lastText }

// SetLastText primes suppression, e.g. after the shelf itself wrote s to
// the clipboard.
func (d *Decoder) SetLastText(s string) { d.lastText = strings.TrimSpace(s) }

// Decode classifies p.
func (d *Decoder) Decode(p Payload, src Source) Decoded {
	offered := p.Formats()
	has := func(f Format) bool { return slices.Contains(offered, f) }

	if entries := d.files(p, has); len(entries) > 0 {
		return Decoded{Category: CategoryFiles, Entries: entries}
	}
	if has(FormatIDList) && d.resolver != nil {
		if entries := d.idLists(p); len(entries) > 0 {
			return Decoded{Category: CategoryIDList, Entries: entries}
		}
	}
	if e, ok := d.text(p, has, src); ok {
		return Decoded{Category: CategoryText, Entries: []Entry{e}}
	}
	return Decoded{Category: CategoryNone}
}

func (d *Decoder) files(p Payload, has func(Format) bool) []Entry {
	var paths []string
	if has(FormatHDROP) {
		paths = d.dropFiles(p)
	}
	if len(paths) == 0 {
		for _, f := range []Format{FormatURIList, FormatFileURL} {
			if !has(f) {
				continue
			}
			b, err := p.Data(f)
			if err != nil {
				d.logger.Warn("read uri list", "format", f, "err", err)
				continue
			}
			if paths = ParseURIList(b); len(paths) > 0 {
				break
			}
		}
	}
	return fileEntries(paths)
}

func (d *Decoder) dropFiles(p Payload) []string {
	b, err := p.Data(FormatHDROP)
	if err != nil {
		d.logger.Warn("read file drop", "err", err)
		return nil
	}
	names, err := ParseDropFiles(b)
	if err != nil {
		d.logger.Warn("file drop partially decoded", "err", err, "names", len(names))
	}
	return names
}

func fileEntries(paths []string) []Entry {
	var out []Entry
	seen := map[string]bool{}
	for _, p := range paths {
		p = shell.Sanitize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, Entry{Kind: shelf.KindFile, Content: p})
	}
	return out
}

func (d *Decoder) idLists(p Payload) []Entry {
	b, err := p.Data(FormatIDList)
	if err != nil {
		d.logger.Warn("read identifier list", "err", err)
		return nil
	}
	lists, err := ParseCIDA(b)
	if err != nil {
		d.logger.Warn("identifier list partially decoded", "err", err, "lists", len(lists))
	}

	var out []Entry
	seen := map[string]bool{}
	for i, raw := range lists {
		list := shell.NewIDList(raw)
		name, res, err := d.resolver.ResolveIDList(list)
		list.Release()
		if err != nil {
			d.logger.Warn("skipping unnamed shell object", "index", i, "err", err)
			continue
		}
		name = shell.Sanitize(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entry{Kind: shelf.KindFile, Content: name, DisplayName: res.DisplayName})
	}
	return out
}

func (d *Decoder) text(p Payload, has func(Format) bool, src Source) (Entry, bool) {
	raw, ok := d.readText(p, has)
	if !ok {
		return Entry{}, false
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return Entry{}, false
	}
	if src == SourceClipboard {
		if text == d.lastText {
			d.logger.Debug("suppressing repeated clipboard text")
			return Entry{}, false
		}
		d.lastText = text
	}
	return Entry{Kind: Classify(text), Content: text}, true
}

func (d *Decoder) readText(p Payload, has func(Format) bool) (string, bool) {
	for _, f := range []Format{FormatText, FormatPlainText} {
		if !has(f) {
			continue
		}
		if b, err := p.Data(f); err == nil {
			return strings.TrimRight(string(b), "\x00"), true
		}
	}
	if has(FormatUnicodeText) {
		b, err := p.Data(FormatUnicodeText)
		var s string
		if err == nil {
			s, err = DecodeUTF16(b)
		}
		if err == nil {
			return s, true
		}
		d.logger.Warn("read unicode text", "err", err)
	}
	return "", false
}

// Classify returns KindURL for text that starts with http://, https:// or
// www. (any case) and KindText otherwise.
func Classify(text string) shelf.Kind {
	lower := strings.ToLower(text)
	for _, prefix := range []string{"http://", "https://", "www."} {
		if strings.HasPrefix(lower, prefix) {
			return shelf.KindURL
		}
	}
	return shelf.KindText
}
