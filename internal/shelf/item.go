package shelf

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind partitions items by what their content is.
type Kind string

const (
	KindText Kind = "text"
	KindURL  Kind = "url"
	KindFile Kind = "file"
)

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindURL, KindFile:
		return k, nil
	default:
		return "", fmt.Errorf("unknown item type %q", s)
	}
}

// Key is the dedup key of an item.
type Key struct {
	Kind    Kind
	Content string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.Content }

// Item is one entry on the shelf. Values handed out by Store are copies;
// mutate through Store methods only.
type Item struct {
	ID             string
	Kind           Kind
	Content        string
	DisplayName    string
	Favorite       bool
	HiddenFromMain bool
	Tags           []string
	DateAdded      time.Time
	UseCount       int
}

// Key returns the item's dedup key.
func (it Item) Key() Key { return Key{Kind: it.Kind, Content: it.Content} }

// Label is the human name shown for the item.
func (it Item) Label() string {
	if it.DisplayName != "" {
		return it.DisplayName
	}
	return it.Content
}

// hasTagLike reports whether any tag contains q, which must be lower-case.
func (it Item) hasTagLike(q string) bool {
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func (it Item) clone() Item {
	it.Tags = slices.Clone(it.Tags)
	return it
}

// NormalizeTags trims every tag, drops empty ones and collapses duplicates,
// keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// record is the on-disk shape of an Item.
type record struct {
	ID               string   `json:"id,omitempty"`
	Type             string   `json:"type"`
	Content          string   `json:"content"`
	ShellDisplayName string   `json:"shell_display_name"`
	IsFavorite       bool     `json:"is_favorite"`
	HiddenFromMain   bool     `json:"hidden_from_main"`
	Tags             []string `json:"tags"`
	DateAdded        string   `json:"date_added"`
	UseCount         int      `json:"use_count"`
}

// dateLayouts are accepted for date_added. Files written by older versions
// carry naive local timestamps without an offset.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses a stored timestamp in any accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toRecord(it Item) record {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return record{
		ID:               it.ID,
		Type:             string(it.Kind),
		Content:          it.Content,
		ShellDisplayName: it.DisplayName,
		IsFavorite:       it.Favorite,
		HiddenFromMain:   it.HiddenFromMain,
		Tags:             tags,
		DateAdded:        it.DateAdded.Format(time.RFC3339Nano),
		UseCount:         it.UseCount,
	}
}

var errBlankContent = errors.New("blank content")

// decodeRecord parses one raw record. Missing fields take their zero value;
// a missing or unreadable date_added becomes now.
func decodeRecord(raw json.RawMessage, now time.Time) (Item, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Item{}, err
	}
	kind, err := ParseKind(r.Type)
	if err != nil {
		return Item{}, err
	}
	if strings.TrimSpace(r.Content) == "" {
		return Item{}, errBlankContent
	}
	added, ok := ParseDate(r.DateAdded)
	if !ok {
		added = now
	}
	return Item{
		ID:             r.ID,
		Kind:           kind,
		Content:        r.Content,
		DisplayName:    r.ShellDisplayName,
		Favorite:       r.IsFavorite,
		HiddenFromMain: r.HiddenFromMain,
		Tags:           NormalizeTags(r.Tags),
		DateAdded:      added,
		UseCount:       max(r.UseCount, 0),
	}, nil
}
