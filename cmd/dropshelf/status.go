package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/dropshelf/internal/ipc"
	"go.klb.dev/dropshelf/internal/message"
	"go.klb.dev/dropshelf/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon status",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Status(ctx)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				printStatus(resp)
				return nil
			})
		},
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)
	return cmd
}

func printStatus(resp *message.StatusResponse) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "PID:\t%d\n", resp.PID)
	if !resp.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:\t%s (%s)\n", resp.StartedAt.UTC().Format(time.RFC3339), fmtAge(resp.StartedAt))
	}
	fmt.Fprintf(w, "Socket:\t%s\n", ipc.SocketPath())
	fmt.Fprintf(w, "Data dir:\t%s\n", resp.DataDir)
	monitor := "on"
	if !resp.Monitoring {
		monitor = "off"
	}
	fmt.Fprintf(w, "Clipboard:\t%s (monitoring %s)\n", resp.Backend, monitor)
	fmt.Fprintf(w, "Items:\t%d (%d favorite, %d hidden)\n", resp.Items, resp.Favorites, resp.Hidden)
	fmt.Fprintf(w, "Undo:\t%d batch%s\n", resp.UndoDepth, plural(resp.UndoDepth, "", "es"))
	fmt.Fprintf(w, "History:\t%d / %d\n", resp.History, resp.HistoryCap)
	fmt.Fprintf(w, "Watchers:\t%d\n", resp.Watchers)
	_ = w.Flush()
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print shelf events as they happen",
		Long: `Streams daemon events until interrupted: "changed" whenever the shelf
changes (with any newly ingested items), "toggle" for the global hotkey and
"show" when another instance asked the window to appear.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			if !ipc.IsRunning() {
				return fmt.Errorf("dropshelf is not running (socket %s)", ipc.SocketPath())
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			asJSON := v.GetBool("json")
			err = c.Watch(ctx, func(ev message.Event) error {
				if asJSON {
					return printJSON(ev)
				}
				printEvent(ev)
				return nil
			})
			if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
				return plainError(err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "one JSON object per event")
	addConfigFlag(cmd)
	return cmd
}

func printEvent(ev message.Event) {
	ts := time.Now().Format("15:04:05")
	if len(ev.Items) == 0 {
		fmt.Printf("%s  %s\n", ts, ev.Type)
		return
	}
	labels := make([]string, len(ev.Items))
	for i, it := range ev.Items {
		labels[i] = fmt.Sprintf("%s:%s", it.Kind, truncate(oneLine(it.Label), 40))
	}
	fmt.Printf("%s  %s  +%d  %s\n", ts, ev.Type, len(ev.Items), strings.Join(labels, "  "))
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Ask the shelf window to appear",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				return c.Show(ctx)
			})
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Toggle the shelf window, as the global hotkey does",
		Long: `Sends the hotkey action to the daemon. Bind this to a key in your
desktop environment when no native global hotkey is available.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				return c.Toggle(ctx)
			})
		},
	}
}
