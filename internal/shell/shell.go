// Package shell names things the way the desktop shell does: display names
// and icons for real files, deleted files and virtual shell objects such as
// the Recycle Bin.
//
// Resolution walks a fixed chain of strategies:
//
//	live     parse the identifier into an IDList and ask the namespace
//	attrs    look up the identifier as a plain file name, existing or not
//	name     last path segment, no icon
//
// Resolve never fails; it degrades down the chain.
package shell

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsupported is returned by a Namespace for identifiers it cannot parse
// or lists it cannot describe.
var ErrUnsupported = errors.New("shell: unsupported identifier")

// Icon is a rendered icon.
type Icon struct {
	Name string `json:"name,omitempty"` // theme name or source, informational
	PNG  []byte `json:"png,omitempty"`
}

// IDList is an absolute shell identifier list. It either wraps serialized
// bytes (as found in a clipboard "Shell IDList Array") or a handle owned by
// a Namespace. Handles must be released; Release is idempotent.
type IDList struct {
	data     []byte
	handle   uintptr
	location string
	free     func(uintptr)
	once     sync.Once
}

// NewIDList wraps a serialized absolute identifier list.
func NewIDList(data []byte) *IDList { return &IDList{data: data} }

// newHandle wraps a namespace-owned handle; free runs on Release.
func newHandle(h uintptr, location string, free func(uintptr)) *IDList {
	return &IDList{handle: h, location: location, free: free}
}

// Bytes returns the serialized form, or nil for handle-only lists.
func (l *IDList) Bytes() []byte { return l.data }

// Release frees the underlying handle.
func (l *IDList) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.free != nil && l.handle != 0 {
			l.free(l.handle)
		}
		l.handle = 0
	})
}

// Description is what a namespace knows about one object.
type Description struct {
	DisplayName string
	ParsingName string // stable identifier; a path for real files
	TypeName    string
	Icon        *Icon
}

// Namespace parses identifiers into lists and describes lists.
type Namespace interface {
	Parse(id string) (*IDList, error)
	Describe(list *IDList) (Description, error)
}

// Attributes describes a path as an ordinary file without requiring it to
// exist.
type Attributes interface {
	Attributes(path string) (Description, error)
}

// Source says which strategy produced a Resolution.
type Source string

const (
	SourceLive       Source = "live"
	SourceAttributes Source = "attributes"
	SourceName       Source = "name"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	DisplayName string `json:"display_name"`
	TypeName    string `json:"type_name,omitempty"`
	Icon        *Icon  `json:"icon,omitempty"`
	Source      Source `json:"source"`
}

// Strategy is one step of the resolution chain.
type Strategy interface {
	Resolve(id string) (Resolution, error)
}

// liveWalk parses the identifier and describes the resulting list.
type liveWalk struct{ ns Namespace }

func (w liveWalk) Resolve(id string) (Resolution, error) {
	list, err := w.ns.Parse(id)
	if err != nil {
		return Resolution{}, err
	}
	defer list.Release()

	d, err := w.ns.Describe(list)
	if err != nil {
		return Resolution{}, err
	}
	if d.DisplayName == "" {
		return Resolution{}, ErrUnsupported
	}
	return Resolution{DisplayName: d.DisplayName, TypeName: d.TypeName, Icon: d.Icon, Source: SourceLive}, nil
}

// attributeLookup treats the identifier as a plain file name.
type attributeLookup struct{ attrs Attributes }

func (a attributeLookup) Resolve(id string) (Resolution, error) {
	d, err := a.attrs.Attributes(id)
	if err != nil {
		return Resolution{}, err
	}
	name := d.DisplayName
	if name == "" {
		name = LastSegment(id)
	}
	return Resolution{DisplayName: name, TypeName: d.TypeName, Icon: d.Icon, Source: SourceAttributes}, nil
}

// Resolver runs the strategy chain.
type Resolver struct {
	ns     Namespace
	chain  []Strategy
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	ns     Namespace
	attrs  Attributes
	logger *slog.Logger
}

// WithNamespace replaces the platform namespace.
func WithNamespace(ns Namespace) Option { return func(c *resolverConfig) { c.ns = ns } }

// WithAttributes replaces the platform attribute lookup.
func WithAttributes(a Attributes) Option { return func(c *resolverConfig) { c.attrs = a } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *resolverConfig) { c.logger = l } }

// NewResolver returns a resolver for the current platform.
func NewResolver(opts ...Option) *Resolver {
	c := resolverConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&c)
	}
	if c.ns == nil || c.attrs == nil {
		ns, attrs := platform()
		if c.ns == nil {
			c.ns = ns
		}
		if c.attrs == nil {
			c.attrs = attrs
		}
	}
	return &Resolver{
		ns:     c.ns,
		chain:  []Strategy{liveWalk{ns: c.ns}, attributeLookup{attrs: c.attrs}},
		logger: c.logger,
	}
}

// Resolve returns a display name and, when available, an icon for id.
func (r *Resolver) Resolve(id string) Resolution {
	id = Sanitize(id)
	for _, s := range r.chain {
		res, err := s.Resolve(id)
		if err == nil {
			return res
		}
		r.logger.Debug("shell strategy failed", "id", id, "strategy", stratName(s), "err", err)
	}
	return Resolution{DisplayName: LastSegment(id), Source: SourceName}
}

// ResolveIDList names an already parsed list. The returned parsing name is
// the identifier to store; it is empty only when err is non-nil.
func (r *Resolver) ResolveIDList(list *IDList) (parsingName string, res Resolution, err error) {
	d, err := r.ns.Describe(list)
	if err != nil {
		return "", Resolution{}, err
	}
	if d.ParsingName == "" {
		return "", Resolution{}, ErrUnsupported
	}
	name := d.DisplayName
	if name == "" {
		name = LastSegment(d.ParsingName)
	}
	return d.ParsingName, Resolution{DisplayName: name, TypeName: d.TypeName, Icon: d.Icon, Source: SourceLive}, nil
}

func stratName(s Strategy) string {
	switch s.(type) {
	case liveWalk:
		return string(SourceLive)
	case attributeLookup:
		return string(SourceAttributes)
	default:
		return "custom"
	}
}

// Sanitize trims whitespace and trailing NUL, CR and LF runs from a native
// path string.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "\x00\r\n"))
}

// LastSegment returns the final element of a path-like identifier, handling
// both slash styles and trailing separators.
func LastSegment(id string) string {
	s := strings.TrimRight(id, `/\`)
	if s == "" {
		return id
	}
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return filepath.Base(id)
	}
	return s
}
