package history_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"go.klb.dev/dropshelf/internal/history"
	"go.klb.dev/dropshelf/internal/shelf"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func contents(entries []history.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

func TestRecordEvictsOldest(t *testing.T) {
	l := history.New("", 3, history.WithClock(fixedClock()))
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		l.Record(shelf.KindText, c)
	}
	assert.Equal(t, []string{"c", "d", "e"}, contents(l.Entries()))
}

func TestCapZeroDisablesHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropshelf_history.json")
	l := history.New(path, 0)
	l.Record(shelf.KindURL, "https://example.com")
	assert.Zero(t, l.Len())
	assert.NoFileExists(t, path)
}

func TestCapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(0, 20).Draw(t, "cap")
		l := history.New("", limit)
		n := rapid.IntRange(0, 60).Draw(t, "records")
		for i := 0; i < n; i++ {
			l.Record(shelf.KindText, rapid.StringN(1, 8, -1).Draw(t, "content"))
			if l.Len() > limit {
				t.Fatalf("len %d exceeds cap %d", l.Len(), limit)
			}
		}
		if want := min(n, limit); l.Len() != want {
			t.Fatalf("len = %d, want %d", l.Len(), want)
		}
	})
}

func TestSetCapShrinksImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropshelf_history.json")
	l := history.New(path, 10, history.WithClock(fixedClock()))
	for _, c := range []string{"a", "b", "c", "d"} {
		l.Record(shelf.KindText, c)
	}

	l.SetCap(2)
	assert.Equal(t, []string{"c", "d"}, contents(l.Entries()))

	reloaded := history.Open(path, 10)
	assert.Equal(t, []string{"c", "d"}, contents(reloaded.Entries()))

	l.SetCap(0)
	assert.Zero(t, l.Len())
	assert.Zero(t, history.Open(path, 10).Len())
}

func TestSetCapClamps(t *testing.T) {
	l := history.New("", 5)
	l.SetCap(5000)
	assert.Equal(t, history.MaxCap, l.Cap())
	l.SetCap(-1)
	assert.Equal(t, 0, l.Cap())
}

func TestLoadTruncatesToCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropshelf_history.json")
	big := history.New(path, 10, history.WithClock(fixedClock()))
	for _, c := range []string{"1", "2", "3", "4", "5"} {
		big.Record(shelf.KindText, c)
	}

	small := history.Open(path, 2)
	assert.Equal(t, []string{"4", "5"}, contents(small.Entries()))
}

func TestLoadNaiveTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropshelf_history.json")
	data := `[{"type":"url","content":"https://a","time":"2023-02-03T04:05:06.789"},{"type":"text","content":"b","time":""}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	l := history.Open(path, 10)
	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, shelf.KindURL, entries[0].Kind)
	assert.Equal(t, 2023, entries[0].Time.Year())
	assert.True(t, entries[1].Time.IsZero())
}

func TestRemoveAndClear(t *testing.T) {
	l := history.New("", 10)
	for _, c := range []string{"a", "b", "c"} {
		l.Record(shelf.KindText, c)
	}
	require.NoError(t, l.Remove(1))
	assert.Equal(t, []string{"a", "c"}, contents(l.Entries()))
	assert.Error(t, l.Remove(5))

	l.Clear()
	assert.Zero(t, l.Len())
}
