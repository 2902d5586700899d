// dropshelf: a persistent shelf for everything you copy, drag or paste.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/dropshelf/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dropshelf",
		Short: "A shelf for copied, dragged and pasted files, URLs and text",
		Long: `dropshelf collects what you copy, drag or paste (files, shell objects
such as the Recycle Bin, URLs and text), deduplicates it and keeps it on a
persistent shelf with favorites, tags, undo and a rolling history.

Run "dropshelf serve" once per desktop session. Every other sub-command
talks to the running daemon over its local socket.

Config file search order (first found wins):
  /etc/dropshelf/dropshelf.toml
  $HOME/.config/dropshelf/dropshelf.toml
  path supplied via --config

All flags can be set via DROPSHELF_<FLAG> env vars or config-file keys.
Shelf behaviour (clipboard monitoring, history size, window geometry) lives
in dropshelf_settings.json in the data directory; see "dropshelf settings".`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newListCmd(),
		newAddCmd(),
		newDropCmd(),
		newFavCmd(),
		newRemoveCmd(),
		newDeleteCmd(),
		newUndoCmd(),
		newClearCmd(),
		newMoveCmd(),
		newSortCmd(),
		newUseCmd(),
		newTagCmd(),
		newInfoCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newImportCmd(),
		newShowCmd(),
		newToggleCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newSettingsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("dropshelf %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
// A non-empty logFile also appends every record to that file.
func resolveLogging(interactive bool, formatStr, levelStr, logFile string) (func() error, error) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	if logFile != "" {
		return logging.SetupFile(logFile, format, level)
	}
	logging.Setup(format, level)
	return func() error { return nil }, nil
}
