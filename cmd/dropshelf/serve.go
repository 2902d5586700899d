package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/dropshelf/internal/clip"
	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/history"
	"go.klb.dev/dropshelf/internal/hub"
	"go.klb.dev/dropshelf/internal/ipc"
	"go.klb.dev/dropshelf/internal/rpc"
	"go.klb.dev/dropshelf/internal/settings"
	"go.klb.dev/dropshelf/internal/shelf"
	"go.klb.dev/dropshelf/internal/shell"
	"go.klb.dev/dropshelf/internal/titlefetch"
	"go.klb.dev/dropshelf/internal/watcher"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shelf daemon (clipboard watcher + local socket)",
		Long: `Starts the dropshelf daemon. It watches the system clipboard, owns the
shelf, history and settings files, and serves the other sub-commands (and
any UI) over the local socket.

Only one daemon runs per session: if one is already listening, serve asks
it to show its window and exits.

Precedence (lowest → highest): defaults → config file → DROPSHELF_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.Bool("no-monitor", false, "start with clipboard monitoring off regardless of settings")
	f.Bool("no-titles", false, "do not fetch page titles for URL items")
	addDataDirFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	closeLog, err := setupLogging(v)
	if err != nil {
		return err
	}
	defer closeLog()

	if ipc.IsRunning() {
		return showRunning()
	}

	dataDir := v.GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	slog.Info("dropshelf starting", "version", Version, "data_dir", dataDir)

	sett, err := settings.Open(filepath.Join(dataDir, settings.FileName), slog.Default())
	if err != nil {
		slog.Warn("settings unavailable, using defaults", "err", err)
	}
	cfg := sett.Get()

	resolver := shell.NewResolver(shell.WithLogger(slog.Default()))
	backend := clip.New()
	defer backend.Close()
	slog.Info("clipboard backend", "name", backend.Name())

	state := &hub.State{
		Store:     shelf.Open(filepath.Join(dataDir, shelf.FileName), shelf.WithLogger(slog.Default())),
		History:   history.Open(filepath.Join(dataDir, history.FileName), cfg.MaxHistory, history.WithLogger(slog.Default())),
		Decoder:   decode.New(resolver, slog.Default()),
		Clipboard: backend,
	}
	opts := []hub.Option{hub.WithLogger(slog.Default())}
	if !v.GetBool("no-titles") {
		opts = append(opts, hub.WithTitleFetcher(titlefetch.New()))
	}
	h := hub.New(state, opts...)
	noMonitor := v.GetBool("no-monitor")
	h.SetMonitoring(cfg.MonitorClipboard && !noMonitor)

	ln, err := ipc.Listen()
	if errors.Is(err, ipc.ErrRunning) {
		return showRunning()
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", ipc.SocketPath(), err)
	}
	slog.Info("IPC socket listening", "path", ipc.SocketPath())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sett.Watch(func(old, next settings.Settings) {
		if !noMonitor {
			h.SetMonitoring(next.MonitorClipboard)
		}
		if old.MaxHistory != next.MaxHistory {
			err := h.Do(ctx, func(s *hub.State) error {
				s.History.SetCap(next.MaxHistory)
				return nil
			})
			if err != nil {
				slog.Warn("history cap not applied", "err", err)
			}
		}
	})

	go h.Run(ctx)
	go watcher.New(backend, h, slog.Default()).Run(ctx)

	srv := rpc.NewServer(h, resolver, rpc.Info{
		Version:   Version,
		DataDir:   dataDir,
		Backend:   backend.Name(),
		StartedAt: time.Now(),
	}, slog.Default())

	err = rpc.Serve(ctx, ln, srv, grpc.UnaryInterceptor(rpc.LogInterceptor(slog.Default())))
	slog.Info("dropshelf stopped")
	return err
}

// showRunning hands over to the daemon that already owns the socket.
func showRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Show(ctx); err != nil {
		return fmt.Errorf("another instance is running but did not answer: %w", err)
	}
	slog.Info("dropshelf already running; asked it to show", "socket", ipc.SocketPath())
	return nil
}
