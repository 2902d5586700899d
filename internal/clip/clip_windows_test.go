//go:build windows

package clip

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/shelf"
)

func TestWindowsWriteFileOffersHDROP(t *testing.T) {
	b := New()
	defer b.Close()

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, b.Write(shelf.KindFile, path))

	p, err := b.Read()
	require.NoError(t, err)
	require.NotNil(t, p)
	raw, err := p.Data(decode.FormatHDROP)
	require.NoError(t, err)
	names, err := decode.ParseDropFiles(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, names)
}

func TestWindowsReadLeavesClipboardClosed(t *testing.T) {
	b := New()
	defer b.Close()
	require.NoError(t, b.Write(shelf.KindText, "threads"))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := b.Read()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// A clipboard left open by a failed close would make this time out.
	require.NoError(t, openClipboard())
	procCloseClipboard.Call()
}
