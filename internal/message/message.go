// Package message defines the dropshelf RPC payloads.
//
// All messages are JSON. Raw byte fields (drop payloads, import/export
// files) are base64-encoded by encoding/json so binary formats such as
// CF_HDROP survive the trip.
package message

import (
	"time"

	"go.klb.dev/dropshelf/internal/history"
	"go.klb.dev/dropshelf/internal/shelf"
)

// EventType identifies a Watch event.
type EventType string

const (
	EventChanged EventType = "changed"
	EventToggle  EventType = "toggle"
	EventShow    EventType = "show"
)

// UseAction selects what Use does with an item.
type UseAction string

const (
	UseCopy   UseAction = "copy"
	UseOpen   UseAction = "open"
	UseReveal UseAction = "reveal"
)

// Item is a shelf item as seen by clients.
type Item struct {
	ID          string     `json:"id"`
	Kind        shelf.Kind `json:"type"`
	Content     string     `json:"content"`
	DisplayName string     `json:"display_name,omitempty"`
	Label       string     `json:"label"`
	Favorite    bool       `json:"is_favorite"`
	Hidden      bool       `json:"hidden_from_main"`
	Tags        []string   `json:"tags"`
	DateAdded   time.Time  `json:"date_added"`
	UseCount    int        `json:"use_count"`
}

// FromShelf converts a store item.
func FromShelf(it shelf.Item) Item {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return Item{
		ID:          it.ID,
		Kind:        it.Kind,
		Content:     it.Content,
		DisplayName: it.DisplayName,
		Label:       it.Label(),
		Favorite:    it.Favorite,
		Hidden:      it.HiddenFromMain,
		Tags:        tags,
		DateAdded:   it.DateAdded,
		UseCount:    it.UseCount,
	}
}

// FromShelfItems converts a slice of store items.
func FromShelfItems(items []shelf.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = FromShelf(it)
	}
	return out
}

// Empty is used where a call takes or returns nothing.
type Empty struct{}

// ListRequest selects a view of the shelf. Sort empty means shelf order.
type ListRequest struct {
	Tab       shelf.Tab  `json:"tab,omitempty"`
	Kind      shelf.Kind `json:"kind,omitempty"`
	Query     string     `json:"query,omitempty"`
	Sort      string     `json:"sort,omitempty"`
	Ascending *bool      `json:"ascending,omitempty"`
}

type ListResponse struct {
	Items     []Item `json:"items"`
	Total     int    `json:"total"`
	UndoDepth int    `json:"undo_depth"`
}

type AddRequest struct {
	Kind     shelf.Kind `json:"kind,omitempty"`
	Content  string     `json:"content"`
	Favorite bool       `json:"favorite,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

type ItemResponse struct {
	Item Item `json:"item"`
}

// DropRequest carries a native drag payload, one entry per offered format.
type DropRequest struct {
	Formats map[string][]byte `json:"formats"`
}

type DropResponse struct {
	Items []Item `json:"items"`
}

// ItemRef names one item by id.
type ItemRef struct {
	ID string `json:"id"`
}

type RemoveRequest struct {
	ID  string    `json:"id"`
	Tab shelf.Tab `json:"tab,omitempty"`
}

type RemoveResponse struct {
	Removal string `json:"removal"`
}

type DeleteBatchRequest struct {
	IDs []string `json:"ids"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type MoveRequest struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

type SortRequest struct {
	Key       string `json:"key"`
	Ascending *bool  `json:"ascending,omitempty"`
}

type UseRequest struct {
	ID     string    `json:"id"`
	Action UseAction `json:"action,omitempty"`
}

type SetTagsRequest struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

// ResolveRequest asks the daemon to describe a path or shell identifier
// without adding it.
type ResolveRequest struct {
	Content string `json:"content"`
}

type ResolveResponse struct {
	DisplayName string `json:"display_name"`
	TypeName    string `json:"type_name,omitempty"`
	Source      string `json:"source"`
	Info        string `json:"info,omitempty"`
	HasIcon     bool   `json:"has_icon"`
	Icon        []byte `json:"icon,omitempty"`
}

type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Cap     int             `json:"cap"`
}

type ExportResponse struct {
	Data []byte `json:"data"`
}

type ImportRequest struct {
	Data []byte `json:"data"`
}

type StatusResponse struct {
	Version    string    `json:"version"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	DataDir    string    `json:"data_dir"`
	Backend    string    `json:"backend"`
	Monitoring bool      `json:"monitoring"`
	Items      int       `json:"items"`
	Favorites  int       `json:"favorites"`
	Hidden     int       `json:"hidden"`
	UndoDepth  int       `json:"undo_depth"`
	History    int       `json:"history"`
	HistoryCap int       `json:"history_cap"`
	Watchers   int       `json:"watchers"`
}

// Event is streamed by Watch.
type Event struct {
	Type  EventType `json:"type"`
	Items []Item    `json:"items,omitempty"`
}
