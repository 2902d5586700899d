// Package ipc provides the local socket the dropshelf daemon serves on.
//
// The daemon listens on a Unix domain socket (a named pipe on Windows) and
// serves gRPC and plain HTTP on it. CLI sub-commands and a second "serve"
// invocation dial the same path; a successful dial means an instance is
// already running.
package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// ErrRunning is returned by Listen when another daemon owns the socket.
var ErrRunning = errors.New("ipc: another instance is running")

// probeTimeout bounds the single-instance check.
const probeTimeout = 500 * time.Millisecond

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/dropshelf.sock, else $TMPDIR/dropshelf.sock
//   - macOS:   $TMPDIR/dropshelf.sock
//   - Windows: \\.\pipe\dropshelf
//
// $DROPSHELF_SOCKET overrides all of these.
func SocketPath() string {
	if s := os.Getenv("DROPSHELF_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// Dial connects to the daemon.
func Dial(ctx context.Context) (net.Conn, error) {
	return dialIPC(ctx, SocketPath())
}

// DialContext has the shape grpc.WithContextDialer expects; addr is ignored.
func DialContext(ctx context.Context, _ string) (net.Conn, error) {
	return Dial(ctx)
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	c, err := Dial(ctx)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates the IPC listener. A stale socket left by a crashed run is
// removed; a live one yields ErrRunning.
func Listen() (net.Listener, error) {
	if IsRunning() {
		return nil, ErrRunning
	}
	return listenIPC(SocketPath())
}
