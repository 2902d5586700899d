package shelf_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"go.klb.dev/dropshelf/internal/shelf"
)

// tickClock returns a clock that advances one minute per call.
func tickClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newStore(t *testing.T, opts ...shelf.Option) (*shelf.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dropshelf_items.json")
	opts = append([]shelf.Option{shelf.WithClock(tickClock())}, opts...)
	return shelf.New(path, opts...), path
}

func contents(items []shelf.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Content
	}
	return out
}

func key(kind shelf.Kind, content string) shelf.Key {
	return shelf.Key{Kind: kind, Content: content}
}

func TestAddIsIdempotent(t *testing.T) {
	s, _ := newStore(t)

	first, ok := s.Add(shelf.KindText, "hello")
	require.True(t, ok)
	s.Add(shelf.KindText, "other")
	second, ok := s.Add(shelf.KindText, "hello")
	require.True(t, ok)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"hello", "other"}, contents(s.Items()))
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.DateAdded.Equal(second.DateAdded), "dateAdded must not change on re-add")
}

func TestAddSameContentDifferentKind(t *testing.T) {
	s, _ := newStore(t)
	s.Add(shelf.KindText, "https://example.com")
	s.Add(shelf.KindURL, "https://example.com")
	assert.Equal(t, 2, s.Len())
}

func TestAddBlankIsNoop(t *testing.T) {
	s, path := newStore(t)
	_, ok := s.Add(shelf.KindText, "  \n\t ")
	assert.False(t, ok)
	assert.Zero(t, s.Len())
	assert.NoFileExists(t, path)
}

func TestAddMergesExisting(t *testing.T) {
	s, _ := newStore(t)
	s.Add(shelf.KindFile, "/tmp/report.pdf",
		shelf.WithFavorite(true),
		shelf.WithTags("work", "q1"),
		shelf.WithUseCount(5),
		shelf.WithDisplayName("Report"),
	)
	_, err := s.RequestRemoval(key(shelf.KindFile, "/tmp/report.pdf"), shelf.TabAll)
	require.NoError(t, err)

	got, ok := s.Add(shelf.KindFile, "/tmp/report.pdf",
		shelf.WithTags("q1", "urgent"),
		shelf.WithUseCount(2),
	)
	require.True(t, ok)

	assert.True(t, got.Favorite, "favorite is sticky")
	assert.False(t, got.HiddenFromMain, "re-adding un-hides")
	assert.Equal(t, []string{"work", "q1", "urgent"}, got.Tags)
	assert.Equal(t, 5, got.UseCount)
	assert.Equal(t, "Report", got.DisplayName)

	renamed, _ := s.Add(shelf.KindFile, "/tmp/report.pdf", shelf.WithDisplayName("Q1 Report"))
	assert.Equal(t, "Q1 Report", renamed.DisplayName)
}

func TestAddFavoriteHiddenSkipsPersist(t *testing.T) {
	s, path := newStore(t)
	s.Add(shelf.KindText, "secret", shelf.WithFavorite(true), shelf.WithHidden(true))
	assert.Equal(t, 1, s.Len())
	assert.NoFileExists(t, path)

	s.Add(shelf.KindText, "plain")
	assert.FileExists(t, path)
}

func TestFavoriteHiddenStateMachine(t *testing.T) {
	s, _ := newStore(t)
	k := key(shelf.KindURL, "https://go.dev")
	s.Add(k.Kind, k.Content)

	it, err := s.ToggleFavorite(k)
	require.NoError(t, err)
	assert.True(t, it.Favorite)

	// Removing a favorite from the main view hides it.
	res, err := s.RequestRemoval(k, shelf.TabAll)
	require.NoError(t, err)
	assert.Equal(t, shelf.RemovalHidden, res)
	assert.Empty(t, s.Filter(shelf.TabAll, "", ""))
	assert.Len(t, s.Filter(shelf.TabFavorites, "", ""), 1)

	// Removing from Favorites un-favorites and brings it back.
	res, err = s.RequestRemoval(k, shelf.TabFavorites)
	require.NoError(t, err)
	assert.Equal(t, shelf.RemovalUnfavorited, res)
	it, _ = s.Find(k)
	assert.False(t, it.Favorite)
	assert.False(t, it.HiddenFromMain)
	assert.Len(t, s.Filter(shelf.TabAll, "", ""), 1)

	// A plain item is deleted.
	res, err = s.RequestRemoval(k, shelf.TabAll)
	require.NoError(t, err)
	assert.Equal(t, shelf.RemovalDeleted, res)
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, s.UndoDepth())
}

func TestToggleFavoriteClearsHidden(t *testing.T) {
	s, _ := newStore(t)
	k := key(shelf.KindText, "x")
	s.Add(k.Kind, k.Content, shelf.WithFavorite(true), shelf.WithHidden(true))

	it, err := s.ToggleFavorite(k)
	require.NoError(t, err)
	assert.False(t, it.Favorite)
	assert.False(t, it.HiddenFromMain)
}

func TestUnknownKey(t *testing.T) {
	s, _ := newStore(t)
	missing := key(shelf.KindText, "nope")

	_, err := s.ToggleFavorite(missing)
	assert.ErrorIs(t, err, shelf.ErrNotFound)
	_, err = s.RequestRemoval(missing, shelf.TabAll)
	assert.ErrorIs(t, err, shelf.ErrNotFound)
	assert.ErrorIs(t, s.Move(missing, 0), shelf.ErrNotFound)
	_, err = s.MarkUsed(missing)
	assert.ErrorIs(t, err, shelf.ErrNotFound)
	assert.Zero(t, s.DeleteBatch([]shelf.Key{missing}))
	assert.Zero(t, s.UndoDepth())
}

func TestDeleteBatchUndoRestoresOrder(t *testing.T) {
	s, _ := newStore(t)
	for _, c := range []string{"a", "b", "c", "d"} {
		s.Add(shelf.KindText, c)
	}
	// shelf: d c b a
	n := s.DeleteBatch([]shelf.Key{key(shelf.KindText, "a"), key(shelf.KindText, "c")})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"d", "b"}, contents(s.Items()))

	assert.Equal(t, 2, s.UndoLast())
	assert.Equal(t, []string{"c", "a", "d", "b"}, contents(s.Items()))
	assert.Zero(t, s.UndoLast(), "undo on an empty stack is a no-op")
}

func TestUndoRestoresFields(t *testing.T) {
	s, _ := newStore(t)
	k := key(shelf.KindFile, "/data/x.txt")
	orig, _ := s.Add(k.Kind, k.Content,
		shelf.WithTags("a", "b"),
		shelf.WithUseCount(7),
		shelf.WithDisplayName("X"),
	)
	_, err := s.RequestRemoval(k, shelf.TabAll)
	require.NoError(t, err)
	require.Equal(t, 1, s.UndoLast())

	got, ok := s.Find(k)
	require.True(t, ok)
	assert.Equal(t, orig, got)
}

func TestUndoProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := shelf.New("", shelf.WithClock(tickClock()))
		kinds := []shelf.Kind{shelf.KindText, shelf.KindURL, shelf.KindFile}

		n := rapid.IntRange(1, 20).Draw(t, "adds")
		for i := 0; i < n; i++ {
			s.Add(
				rapid.SampledFrom(kinds).Draw(t, "kind"),
				rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f"}).Draw(t, "content"),
				shelf.WithFavorite(rapid.Bool().Draw(t, "fav")),
				shelf.WithUseCount(rapid.IntRange(0, 9).Draw(t, "used")),
				shelf.WithTags(rapid.SliceOfN(rapid.SampledFrom([]string{"x", "y", " z "}), 0, 3).Draw(t, "tags")...),
			)
		}

		before := map[shelf.Key]shelf.Item{}
		var keys []shelf.Key
		for _, it := range s.Items() {
			before[it.Key()] = it
			keys = append(keys, it.Key())
		}

		var doomed []shelf.Key
		for _, k := range keys {
			if rapid.Bool().Draw(t, "delete") {
				doomed = append(doomed, k)
			}
		}
		removed := s.DeleteBatch(doomed)
		if removed != len(doomed) {
			t.Fatalf("removed %d, want %d", removed, len(doomed))
		}
		if removed > 0 {
			s.UndoLast()
		}

		after := map[shelf.Key]shelf.Item{}
		for _, it := range s.Items() {
			after[it.Key()] = it
		}
		if len(after) != len(before) {
			t.Fatalf("len after undo = %d, want %d", len(after), len(before))
		}
		for k, want := range before {
			got, ok := after[k]
			if !ok {
				t.Fatalf("%s missing after undo", k)
			}
			if got.ID != want.ID || got.Favorite != want.Favorite || got.HiddenFromMain != want.HiddenFromMain ||
				got.UseCount != want.UseCount || !got.DateAdded.Equal(want.DateAdded) ||
				fmt.Sprint(got.Tags) != fmt.Sprint(want.Tags) {
				t.Fatalf("%s changed across delete/undo: got %+v want %+v", k, got, want)
			}
		}
	})
}

func TestUniqueKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := shelf.New("", shelf.WithClock(tickClock()))
		n := rapid.IntRange(0, 40).Draw(t, "ops")
		for i := 0; i < n; i++ {
			s.Add(
				rapid.SampledFrom([]shelf.Kind{shelf.KindText, shelf.KindURL}).Draw(t, "kind"),
				rapid.SampledFrom([]string{"p", "q", "r"}).Draw(t, "content"),
			)
		}
		seen := map[shelf.Key]bool{}
		for _, it := range s.Items() {
			if seen[it.Key()] {
				t.Fatalf("duplicate key %s", it.Key())
			}
			seen[it.Key()] = true
		}
	})
}

func TestClearHidesFavoritesAndDeletesRest(t *testing.T) {
	s, _ := newStore(t)
	s.Add(shelf.KindText, "keep", shelf.WithFavorite(true))
	s.Add(shelf.KindText, "drop1")
	s.Add(shelf.KindText, "drop2")

	assert.Equal(t, 2, s.Clear())
	assert.Empty(t, s.Filter(shelf.TabAll, "", ""))
	assert.Equal(t, []string{"keep"}, contents(s.Filter(shelf.TabFavorites, "", "")))

	assert.Equal(t, 2, s.UndoLast())
	assert.Equal(t, []string{"drop2", "drop1"}, contents(s.Filter(shelf.TabAll, "", "")))
}

func TestMoveClamps(t *testing.T) {
	s, _ := newStore(t)
	for _, c := range []string{"a", "b", "c"} {
		s.Add(shelf.KindText, c)
	}
	require.NoError(t, s.Move(key(shelf.KindText, "c"), 99))
	assert.Equal(t, []string{"b", "a", "c"}, contents(s.Items()))
	require.NoError(t, s.Move(key(shelf.KindText, "a"), -3))
	assert.Equal(t, []string{"a", "b", "c"}, contents(s.Items()))
}

func TestMarkUsedAndSetTags(t *testing.T) {
	s, _ := newStore(t)
	k := key(shelf.KindURL, "https://example.com")
	s.Add(k.Kind, k.Content)

	it, err := s.MarkUsed(k)
	require.NoError(t, err)
	assert.Equal(t, 1, it.UseCount)

	it, err = s.SetTags(k, []string{" docs ", "", "docs", "ref"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "ref"}, it.Tags)

	it, err = s.SetDisplayName(k, "  Example Domain ")
	require.NoError(t, err)
	assert.Equal(t, "Example Domain", it.DisplayName)

	got, ok := s.Get(it.ID)
	require.True(t, ok)
	assert.Equal(t, it, got)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, shelf.NormalizeTags([]string{" a", "a", "", "b ", "  "}))
	assert.Equal(t, []string{}, shelf.NormalizeTags(nil))
}

func TestItemsAreCopies(t *testing.T) {
	s, _ := newStore(t)
	s.Add(shelf.KindText, "t", shelf.WithTags("one"))
	items := s.Items()
	items[0].Tags[0] = "mutated"
	items[0].Favorite = true

	got, _ := s.Find(key(shelf.KindText, "t"))
	assert.Equal(t, []string{"one"}, got.Tags)
	assert.False(t, got.Favorite)
}

func TestPersistRoundTrip(t *testing.T) {
	s, path := newStore(t)
	s.Add(shelf.KindFile, "/srv/a.iso", shelf.WithTags("iso"), shelf.WithUseCount(3))
	s.Add(shelf.KindURL, "https://go.dev", shelf.WithFavorite(true), shelf.WithDisplayName("The Go Programming Language"))
	s.Add(shelf.KindText, "note")
	want := s.Items()

	loaded := shelf.Open(path)
	got := loaded.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Key(), got[i].Key())
		assert.Equal(t, want[i].DisplayName, got[i].DisplayName)
		assert.Equal(t, want[i].Favorite, got[i].Favorite)
		assert.Equal(t, want[i].Tags, got[i].Tags)
		assert.Equal(t, want[i].UseCount, got[i].UseCount)
		assert.True(t, want[i].DateAdded.Equal(got[i].DateAdded))
	}
}

func TestLoadToleratesLegacyRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dropshelf_items.json")
	legacy := `[
		{"type": "file", "content": "C:\\Users\\me\\a.txt", "shell_display_name": "", "is_favorite": true,
		 "hidden_from_main": false, "tags": ["x"], "date_added": "2023-11-04T10:15:30.123456", "use_count": 2},
		{"type": "text", "content": "no date", "future_field": 42},
		{"type": "bogus", "content": "skipped"},
		{"type": "text", "content": "   "},
		"not an object",
		{"type": "text", "content": "no date", "is_favorite": true}
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := shelf.Open(path, shelf.WithClock(func() time.Time { return now }))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, `C:\Users\me\a.txt`, items[0].Content)
	assert.True(t, items[0].Favorite)
	assert.Equal(t, 2023, items[0].DateAdded.Year())
	assert.NotEmpty(t, items[0].ID, "records without an id get one")
	assert.Equal(t, "no date", items[1].Content)
	assert.False(t, items[1].Favorite, "first duplicate wins")
	assert.True(t, items[1].DateAdded.Equal(now))
}

func TestLoadFallsBackToBackup(t *testing.T) {
	s, path := newStore(t)
	s.Add(shelf.KindText, "first")
	s.Add(shelf.KindText, "second")

	require.NoError(t, os.WriteFile(path, []byte(`[{"type":`), 0o644))

	loaded := shelf.Open(path)
	assert.Equal(t, []string{"first"}, contents(loaded.Items()))
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := shelf.Open(filepath.Join(t.TempDir(), "none.json"))
	assert.Zero(t, s.Len())
}

func TestSingleRemovalsUndoInReverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := shelf.New("", shelf.WithClock(tickClock()))

		n := rapid.IntRange(1, 12).Draw(t, "adds")
		for i := 0; i < n; i++ {
			s.Add(shelf.KindText, fmt.Sprintf("item-%d", i),
				shelf.WithUseCount(rapid.IntRange(0, 9).Draw(t, "used")),
				shelf.WithTags(rapid.SliceOfN(rapid.SampledFrom([]string{"x", "y", "z"}), 0, 3).Draw(t, "tags")...),
			)
		}
		before := s.Items()

		order := rapid.Permutation(before).Draw(t, "order")
		k := rapid.IntRange(1, len(order)).Draw(t, "removals")
		for i, it := range order[:k] {
			r, err := s.RequestRemoval(it.Key(), shelf.TabAll)
			if err != nil || r != shelf.RemovalDeleted {
				t.Fatalf("removal %d of %s: %v, %v", i, it.Key(), r, err)
			}
			if s.UndoDepth() != i+1 {
				t.Fatalf("undo depth %d after %d removals", s.UndoDepth(), i+1)
			}
		}

		for i := k - 1; i >= 0; i-- {
			if got := s.UndoLast(); got != 1 {
				t.Fatalf("undo restored %d items, want 1", got)
			}
			// LIFO: the most recent removal comes back first.
			if _, ok := s.Find(order[i].Key()); !ok {
				t.Fatalf("%s not restored by undo %d", order[i].Key(), k-i)
			}
			for _, later := range order[:i] {
				if _, ok := s.Find(later.Key()); ok {
					t.Fatalf("%s restored too early", later.Key())
				}
			}
		}
		if s.UndoDepth() != 0 || s.UndoLast() != 0 {
			t.Fatalf("undo stack not empty")
		}

		for _, want := range before {
			got, ok := s.Find(want.Key())
			if !ok {
				t.Fatalf("%s missing", want.Key())
			}
			if got.ID != want.ID || got.UseCount != want.UseCount || !got.DateAdded.Equal(want.DateAdded) ||
				fmt.Sprint(got.Tags) != fmt.Sprint(want.Tags) {
				t.Fatalf("%s changed: got %+v want %+v", want.Key(), got, want)
			}
		}
	})
}
