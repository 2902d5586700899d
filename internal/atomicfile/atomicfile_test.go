package atomicfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesFileWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")

	require.NoError(t, Write(path, []byte("one"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
	assert.NoFileExists(t, BackupPath(path))
}

func TestWriteKeepsSingleBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")

	require.NoError(t, Write(path, []byte("one"), 0o644))
	require.NoError(t, Write(path, []byte("two"), 0o644))
	require.NoError(t, Write(path, []byte("three"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))

	bak, err := os.ReadFile(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, "two", string(bak))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestWriteFailureBeforeRenameKeepsPrimary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, Write(path, []byte(`["original"]`), 0o644))

	renameFile = func(string, string) error { return errors.New("simulated crash") }
	t.Cleanup(func() { renameFile = os.Rename })

	err := Write(path, []byte(`["replacement"]`), 0o644)
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `["original"]`, string(got), "primary must survive a failed replace")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file %s not cleaned up", e.Name())
	}
}

func TestReadFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, Write(path, []byte(`[1]`), 0o644))
	require.NoError(t, Write(path, []byte(`[1,2]`), 0o644))

	// Corrupt the primary the way a non-atomic writer would.
	require.NoError(t, os.WriteFile(path, []byte(`[1,`), 0o644))

	var v []int
	data, fromBackup, err := Read(path, func(b []byte) error { return json.Unmarshal(b, &v) })
	require.NoError(t, err)
	assert.True(t, fromBackup)
	assert.Equal(t, `[1]`, string(data))
}

func TestReadMissing(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	require.NoError(t, WriteJSON(path, map[string]int{"max_history": 5}))

	var got map[string]int
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 5, got["max_history"])
}
