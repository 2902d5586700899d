package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/dropshelf/internal/atomicfile"
	"go.klb.dev/dropshelf/internal/history"
)

func settingsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), FileName)
}

func TestOpenMissingUsesDefaults(t *testing.T) {
	s, err := Open(settingsPath(t), nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s.Get())
	assert.True(t, s.Get().MonitorClipboard)
	assert.Equal(t, "ctrl+shift+x", s.Get().Hotkey)
	assert.Equal(t, 200, s.Get().MaxHistory)
	assert.Nil(t, s.Get().WindowX)
}

func TestOpenReadsFile(t *testing.T) {
	path := settingsPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{
		"monitor_clipboard": false,
		"hotkey": "alt+v",
		"max_history": 50,
		"window_x": -20,
		"window_y": 40
	}`), 0o600))

	s, err := Open(path, nil)
	require.NoError(t, err)
	got := s.Get()
	assert.False(t, got.MonitorClipboard)
	assert.Equal(t, "alt+v", got.Hotkey)
	assert.Equal(t, 50, got.MaxHistory)
	assert.True(t, got.CloseToTray)
	require.NotNil(t, got.WindowX)
	assert.Equal(t, -20, *got.WindowX)
	assert.Equal(t, 40, *got.WindowY)
	assert.Equal(t, DefaultWindowWidth, got.WindowWidth)
}

func TestMaxHistoryIsClamped(t *testing.T) {
	path := settingsPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"max_history": 5000}`), 0o600))
	s, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, history.MaxCap, s.Get().MaxHistory)

	saved, err := s.Update(func(c *Settings) { c.MaxHistory = -3 })
	require.NoError(t, err)
	assert.Equal(t, 0, saved.MaxHistory)
}

func TestEnvOverridesFile(t *testing.T) {
	path := settingsPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"max_history": 50}`), 0o600))
	t.Setenv("DROPSHELF_MAX_HISTORY", "75")

	s, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 75, s.Get().MaxHistory)
}

func TestSaveRoundTrip(t *testing.T) {
	path := settingsPath(t)
	s, err := Open(path, nil)
	require.NoError(t, err)

	x, y := 100, 200
	_, err = s.Update(func(c *Settings) {
		c.CloseToTray = false
		c.Hotkey = "  "
		c.WindowX, c.WindowY = &x, &y
	})
	require.NoError(t, err)

	again, err := Open(path, nil)
	require.NoError(t, err)
	got := again.Get()
	assert.False(t, got.CloseToTray)
	assert.Equal(t, DefaultHotkey, got.Hotkey)
	require.NotNil(t, got.WindowX)
	assert.Equal(t, 100, *got.WindowX)
	assert.True(t, got.Equal(s.Get()))
}

func TestCorruptFileFallsBackToBackup(t *testing.T) {
	path := settingsPath(t)
	s, err := Open(path, nil)
	require.NoError(t, err)
	_, err = s.Update(func(c *Settings) { c.Hotkey = "alt+1" })
	require.NoError(t, err)
	_, err = s.Update(func(c *Settings) { c.Hotkey = "alt+2" })
	require.NoError(t, err)
	require.FileExists(t, atomicfile.BackupPath(path))

	require.NoError(t, os.WriteFile(path, []byte(`{"hotkey": `), 0o600))
	again, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "alt+1", again.Get().Hotkey)
}

func TestCorruptWithoutBackupUsesDefaults(t *testing.T) {
	path := settingsPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	s, err := Open(path, nil)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), s.Get())
}

func TestEqual(t *testing.T) {
	a, b := Defaults(), Defaults()
	assert.True(t, a.Equal(b))
	x1, x2 := 5, 5
	a.WindowX, b.WindowX = &x1, &x2
	assert.True(t, a.Equal(b))
	x2 = 6
	assert.False(t, a.Equal(b))
	b.WindowX = nil
	assert.False(t, a.Equal(b))
}

func TestWatchSeesExternalEdit(t *testing.T) {
	path := settingsPath(t)
	s, err := Open(path, nil)
	require.NoError(t, err)
	_, err = s.Save(Defaults())
	require.NoError(t, err)

	changes := make(chan Settings, 4)
	s.Watch(func(_, next Settings) { changes <- next })

	edited := Defaults()
	edited.MonitorClipboard = false
	edited.MaxHistory = 10
	require.NoError(t, atomicfile.WriteJSON(path, edited))

	select {
	case got := <-changes:
		assert.False(t, got.MonitorClipboard)
		assert.Equal(t, 10, got.MaxHistory)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after external edit")
	}
	assert.Equal(t, 10, s.Get().MaxHistory)
}
