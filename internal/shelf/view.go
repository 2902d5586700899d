package shelf

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// SortKey names an ordering of the shelf. A key selects the value compared
// and its default direction; the ascending flag alone decides the order.
// newest and oldest both compare dateAdded, so Sort(SortNewest, true) is
// oldest first, the same order as Sort(SortOldest, true).
type SortKey string

const (
	SortNewest SortKey = "newest"
	SortOldest SortKey = "oldest"
	SortName   SortKey = "name"
	SortType   SortKey = "type"
	SortSize   SortKey = "size"
	SortUsed   SortKey = "used"
)

// SortKeys lists every supported key in menu order.
var SortKeys = []SortKey{SortNewest, SortOldest, SortName, SortType, SortSize, SortUsed}

// ParseSortKey validates s as a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(SortKeys, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// DefaultAscending is the direction a key sorts in when the caller has no
// preference.
func (k SortKey) DefaultAscending() bool {
	switch k {
	case SortNewest, SortSize, SortUsed:
		return false
	default:
		return true
	}
}

// View describes a filtered and optionally sorted projection of the shelf.
type View struct {
	Tab       Tab
	Kind      Kind // "" matches any kind
	Query     string
	Sort      SortKey // "" keeps shelf order
	Ascending bool
}

// Filter returns copies of the items visible in tab that match kind and
// query, in shelf order.
func (s *Store) Filter(tab Tab, kind Kind, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Item
	for _, it := range s.items {
		if matches(it, tab, kind, q) {
			out = append(out, it.clone())
		}
	}
	return out
}

func matches(it *Item, tab Tab, kind Kind, q string) bool {
	if tab == TabFavorites {
		if !it.Favorite {
			return false
		}
	} else if it.HiddenFromMain {
		return false
	}
	if kind != "" && it.Kind != kind {
		return false
	}
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(it.Content), q) || it.hasTagLike(q)
}

// Sort reorders the live shelf by key and persists the new order. Flags are
// untouched. Descending order is the exact reverse of ascending order,
// including the relative order of ties.
func (s *Store) Sort(key SortKey, ascending bool) error {
	if _, err := ParseSortKey(string(key)); err != nil {
		return err
	}
	s.sortItems(s.items, key, ascending)
	s.save()
	return nil
}

// Snapshot returns a read-only copy of the view.
func (s *Store) Snapshot(v View) []Item {
	items := s.Filter(v.Tab, v.Kind, v.Query)
	if v.Sort == "" {
		return items
	}
	ptrs := make([]*Item, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	s.sortItems(ptrs, v.Sort, v.Ascending)
	out := make([]Item, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

func (s *Store) sortItems(items []*Item, key SortKey, ascending bool) {
	var compare func(a, b *Item) int
	switch key {
	case SortNewest, SortOldest:
		compare = func(a, b *Item) int { return a.DateAdded.Compare(b.DateAdded) }
	case SortName:
		compare = func(a, b *Item) int {
			return strings.Compare(strings.ToLower(a.Label()), strings.ToLower(b.Label()))
		}
	case SortType:
		compare = func(a, b *Item) int { return strings.Compare(typeKey(a), typeKey(b)) }
	case SortSize:
		sizes := make(map[*Item]int64, len(items))
		for _, it := range items {
			if it.Kind == KindFile {
				sizes[it] = s.sizeOf(it.Content)
			}
		}
		compare = func(a, b *Item) int { return cmp.Compare(sizes[a], sizes[b]) }
	case SortUsed:
		compare = func(a, b *Item) int { return cmp.Compare(a.UseCount, b.UseCount) }
	default:
		return
	}
	slices.SortStableFunc(items, compare)
	if !ascending {
		slices.Reverse(items)
	}
}

// typeKey groups by kind, then by file extension within files.
func typeKey(it *Item) string {
	if it.Kind != KindFile {
		return string(it.Kind)
	}
	return string(it.Kind) + "\x00" + strings.ToLower(filepath.Ext(it.Content))
}
