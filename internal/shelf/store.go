// Package shelf owns the canonical collection of shelf items: dedup on
// (kind, content), favorite/hidden state, undoable deletion, filtering,
// sorting and atomic persistence.
//
// A Store is not safe for concurrent use. All mutation is funnelled through
// a single owner goroutine (see internal/hub).
package shelf

import (
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation names an item that is not on
// the shelf.
var ErrNotFound = errors.New("item not found")

// FileName is the item file inside the data directory.
const FileName = "dropshelf_items.json"

// Tab is the view a removal request originates from.
type Tab string

const (
	TabAll       Tab = "all"
	TabFavorites Tab = "fav"
)

// Removal describes what RequestRemoval did.
type Removal int

const (
	// RemovalUnfavorited: the item left Favorites and is back on the main view.
	RemovalUnfavorited Removal = iota + 1
	// RemovalHidden: a favorite was hidden from the main view, not deleted.
	RemovalHidden
	// RemovalDeleted: the item was deleted and can be restored with UndoLast.
	RemovalDeleted
)

func (r Removal) String() string {
	switch r {
	case RemovalUnfavorited:
		return "unfavorited"
	case RemovalHidden:
		return "hidden"
	case RemovalDeleted:
		return "deleted"
	default:
		return "none"
	}
}

// Store holds the ordered shelf (index 0 is the head) and the undo stack.
type Store struct {
	path   string
	items  []*Item
	undo   [][]Item
	now    func() time.Time
	sizeOf func(path string) int64
	newID  func() string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for dateAdded.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithSizeFunc overrides how file sizes are measured for SortSize.
func WithSizeFunc(f func(path string) int64) Option { return func(s *Store) { s.sizeOf = f } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New returns an empty store persisting to path. An empty path keeps the
// store in memory only.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		now:    time.Now,
		sizeOf: fileSize,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open returns a store loaded from path. Load failures are logged and leave
// the store empty.
func Open(path string, opts ...Option) *Store {
	s := New(path, opts...)
	if err := s.Load(); err != nil {
		s.logger.Error("shelf load failed, starting empty", "path", path, "err", err)
	}
	return s
}

// Path returns the item file path.
func (s *Store) Path() string { return s.path }

// AddOption customises a single Add call.
type AddOption func(*Item)

// WithFavorite sets the favorite flag of the incoming item.
func WithFavorite(v bool) AddOption { return func(it *Item) { it.Favorite = v } }

// WithHidden sets hiddenFromMain on the incoming item.
func WithHidden(v bool) AddOption { return func(it *Item) { it.HiddenFromMain = v } }

// WithTags sets the incoming tags; they are normalized.
func WithTags(tags ...string) AddOption {
	return func(it *Item) { it.Tags = NormalizeTags(tags) }
}

// WithDateAdded sets the creation time of a new item.
func WithDateAdded(t time.Time) AddOption { return func(it *Item) { it.DateAdded = t } }

// WithUseCount sets the starting use count.
func WithUseCount(n int) AddOption { return func(it *Item) { it.UseCount = max(n, 0) } }

// WithDisplayName sets the shell display name captured at ingestion.
func WithDisplayName(name string) AddOption {
	return func(it *Item) { it.DisplayName = strings.TrimSpace(name) }
}

func withID(id string) AddOption { return func(it *Item) { it.ID = id } }

// Add inserts content at the head of the shelf, merging with an existing
// item of the same kind and content. Blank content is ignored and reported
// with ok=false.
func (s *Store) Add(kind Kind, content string, opts ...AddOption) (Item, bool) {
	it, ok := s.add(kind, content, opts...)
	if !ok {
		return Item{}, false
	}
	if !(it.Favorite && it.HiddenFromMain) {
		s.save()
	}
	return it.clone(), true
}

func (s *Store) add(kind Kind, content string, opts ...AddOption) (*Item, bool) {
	if strings.TrimSpace(content) == "" {
		return nil, false
	}
	in := &Item{Kind: kind, Content: content}
	for _, o := range opts {
		o(in)
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	if i := s.index(in.Key()); i >= 0 {
		old := s.items[i]
		s.items = slices.Delete(s.items, i, i+1)

		in.ID = old.ID
		in.DateAdded = old.DateAdded
		in.Favorite = in.Favorite || old.Favorite
		// Re-adding always brings the item back to the main view.
		in.HiddenFromMain = false
		if in.DisplayName == "" {
			in.DisplayName = old.DisplayName
		}
		in.Tags = NormalizeTags(append(slices.Clone(old.Tags), in.Tags...))
		in.UseCount = max(in.UseCount, old.UseCount)
	} else {
		if in.ID == "" {
			in.ID = s.newID()
		}
		if in.DateAdded.IsZero() {
			in.DateAdded = s.now()
		}
	}

	s.items = slices.Insert(s.items, 0, in)
	return in, true
}

// ToggleFavorite flips the favorite flag. Un-favoriting also un-hides, since
// only favorites can be hidden from the main view.
func (s *Store) ToggleFavorite(k Key) (Item, error) {
	it := s.lookup(k)
	if it == nil {
		return Item{}, ErrNotFound
	}
	it.Favorite = !it.Favorite
	if !it.Favorite {
		it.HiddenFromMain = false
	}
	s.save()
	return it.clone(), nil
}

// RequestRemoval applies the view-dependent removal policy:
// from Favorites it un-favorites, a favorite on the main view is hidden,
// anything else is deleted with an undo entry.
func (s *Store) RequestRemoval(k Key, tab Tab) (Removal, error) {
	it := s.lookup(k)
	if it == nil {
		return 0, ErrNotFound
	}
	switch {
	case tab == TabFavorites:
		it.Favorite = false
		it.HiddenFromMain = false
		s.save()
		return RemovalUnfavorited, nil
	case it.Favorite:
		it.HiddenFromMain = true
		s.save()
		return RemovalHidden, nil
	default:
		s.DeleteBatch([]Key{k})
		return RemovalDeleted, nil
	}
}

// DeleteBatch removes every listed item as one undoable action and returns
// how many were removed. Unknown keys are ignored.
func (s *Store) DeleteBatch(keys []Key) int {
	drop := make(map[Key]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	var batch []Item
	kept := s.items[:0:0]
	for _, it := range s.items {
		if drop[it.Key()] {
			batch = append(batch, it.clone())
			continue
		}
		kept = append(kept, it)
	}
	if len(batch) == 0 {
		return 0
	}
	s.items = kept
	s.undo = append(s.undo, batch)
	s.save()
	return len(batch)
}

// UndoLast restores the most recently removed batch and returns the number
// of items put back. Items land at the head in their original relative
// order.
func (s *Store) UndoLast() int {
	if len(s.undo) == 0 {
		return 0
	}
	batch := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	for i := len(batch) - 1; i >= 0; i-- {
		it := batch[i]
		s.add(it.Kind, it.Content,
			withID(it.ID),
			WithFavorite(it.Favorite),
			WithHidden(it.HiddenFromMain),
			WithTags(it.Tags...),
			WithDateAdded(it.DateAdded),
			WithUseCount(it.UseCount),
			WithDisplayName(it.DisplayName),
		)
	}
	s.save()
	return len(batch)
}

// UndoDepth reports how many batches can be undone.
func (s *Store) UndoDepth() int { return len(s.undo) }

// Clear empties the main view: favorites are hidden, everything else is
// deleted as one undoable batch.
func (s *Store) Clear() int {
	var doomed []Key
	for _, it := range s.items {
		if it.Favorite {
			it.HiddenFromMain = true
			continue
		}
		doomed = append(doomed, it.Key())
	}
	n := s.DeleteBatch(doomed)
	if n == 0 {
		s.save()
	}
	return n
}

// Move places the item at index, clamped to the shelf bounds.
func (s *Store) Move(k Key, index int) error {
	i := s.index(k)
	if i < 0 {
		return ErrNotFound
	}
	it := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	index = min(max(index, 0), len(s.items))
	s.items = slices.Insert(s.items, index, it)
	s.save()
	return nil
}

// MarkUsed records one invocation of the item's primary action.
func (s *Store) MarkUsed(k Key) (Item, error) {
	it := s.lookup(k)
	if it == nil {
		return Item{}, ErrNotFound
	}
	it.UseCount++
	s.save()
	return it.clone(), nil
}

// SetTags replaces the item's tags.
func (s *Store) SetTags(k Key, tags []string) (Item, error) {
	it := s.lookup(k)
	if it == nil {
		return Item{}, ErrNotFound
	}
	it.Tags = NormalizeTags(tags)
	s.save()
	return it.clone(), nil
}

// SetDisplayName replaces the item's display name.
func (s *Store) SetDisplayName(k Key, name string) (Item, error) {
	it := s.lookup(k)
	if it == nil {
		return Item{}, ErrNotFound
	}
	it.DisplayName = strings.TrimSpace(name)
	s.save()
	return it.clone(), nil
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (Item, bool) {
	for _, it := range s.items {
		if it.ID == id {
			return it.clone(), true
		}
	}
	return Item{}, false
}

// Find returns the item with the given key.
func (s *Store) Find(k Key) (Item, bool) {
	if it := s.lookup(k); it != nil {
		return it.clone(), true
	}
	return Item{}, false
}

// Items returns a copy of the whole shelf in order.
func (s *Store) Items() []Item {
	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone()
	}
	return out
}

// Len returns the number of items on the shelf.
func (s *Store) Len() int { return len(s.items) }

func (s *Store) index(k Key) int {
	return slices.IndexFunc(s.items, func(it *Item) bool { return it.Key() == k })
}

func (s *Store) lookup(k Key) *Item {
	if i := s.index(k); i >= 0 {
		return s.items[i]
	}
	return nil
}

// save persists and logs failures; mutations never fail because of disk.
func (s *Store) save() {
	if err := s.Persist(); err != nil {
		s.logger.Error("shelf save failed", "path", s.path, "err", err)
	}
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return 0
	}
	return fi.Size()
}
