//go:build !windows

package ipc

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("DROPSHELF_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())
}

func TestSocketPathXDG(t *testing.T) {
	t.Setenv("DROPSHELF_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/dropshelf.sock", SocketPath())
}

func TestListenSingleInstance(t *testing.T) {
	// Unix socket paths are length-limited; keep it short.
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	t.Setenv("DROPSHELF_SOCKET", filepath.Join(dir, "d.sock"))

	assert.False(t, IsRunning())
	ln, err := Listen()
	require.NoError(t, err)
	go func(ln net.Listener) {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}(ln)

	assert.True(t, IsRunning())
	_, err = Listen()
	assert.ErrorIs(t, err, ErrRunning)

	require.NoError(t, ln.Close())
	assert.False(t, IsRunning())

	// A stale socket file does not block a fresh daemon.
	fresh, err := Listen()
	require.NoError(t, err)
	fresh.Close()
}
