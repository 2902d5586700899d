package shelf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.klb.dev/dropshelf/internal/atomicfile"
)

// Load replaces the shelf with the contents of the item file, falling back
// to the backup when the primary is unreadable. A missing file is not an
// error. Records that cannot be decoded are skipped.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	var raws []json.RawMessage
	_, fromBackup, err := atomicfile.Read(s.path, func(b []byte) error {
		raws = nil
		return json.Unmarshal(b, &raws)
	})
	if errors.Is(err, atomicfile.ErrNoFile) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load shelf: %w", err)
	}
	if fromBackup {
		s.logger.Warn("shelf file unreadable, loaded backup", "path", s.path)
	}

	now := s.now()
	seen := make(map[Key]bool, len(raws))
	items := make([]*Item, 0, len(raws))
	for i, raw := range raws {
		it, err := decodeRecord(raw, now)
		if err != nil {
			s.logger.Warn("skipping shelf record", "index", i, "err", err)
			continue
		}
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		if it.ID == "" {
			it.ID = s.newID()
		}
		items = append(items, &it)
	}
	s.items = items
	s.logger.Debug("shelf loaded", "items", len(items))
	return nil
}

// Persist writes the whole shelf to the item file atomically.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}
	return atomicfile.WriteJSON(s.path, s.records())
}

func (s *Store) records() []record {
	recs := make([]record, len(s.items))
	for i, it := range s.items {
		recs[i] = toRecord(*it)
	}
	return recs
}

// Export writes the item file to w byte for byte. Before the first save it
// writes the current state instead.
func (s *Store) Export(w io.Writer) error {
	if s.path != "" {
		err := atomicfile.Copy(w, s.path)
		if !errors.Is(err, atomicfile.ErrNoFile) {
			return err
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.records())
}

// Import adds every well-formed record in r, in order, so the first record
// ends up at the head. Malformed records are skipped. It returns the number
// of records imported; the error is non-nil only when r is not a JSON array.
func (s *Store) Import(r io.Reader) (int, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	now := s.now()
	var incoming []Item
	for i, raw := range raws {
		it, err := decodeRecord(raw, now)
		if err != nil {
			s.logger.Warn("skipping import record", "index", i, "err", err)
			continue
		}
		incoming = append(incoming, it)
	}

	for i := len(incoming) - 1; i >= 0; i-- {
		it := incoming[i]
		opts := []AddOption{
			WithFavorite(it.Favorite),
			WithHidden(it.HiddenFromMain),
			WithTags(it.Tags...),
			WithDateAdded(it.DateAdded),
			WithUseCount(it.UseCount),
			WithDisplayName(it.DisplayName),
		}
		if it.ID != "" {
			if other, ok := s.Get(it.ID); !ok || other.Key() == it.Key() {
				opts = append(opts, withID(it.ID))
			}
		}
		s.add(it.Kind, it.Content, opts...)
	}
	if len(incoming) > 0 {
		s.save()
	}
	return len(incoming), nil
}
