package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/dropshelf/internal/atomicfile"
	"go.klb.dev/dropshelf/internal/rpc"
)

func newHistoryCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show (or clear) the ingestion history",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				if v.GetBool("clear") {
					resp, err := c.ClearHistory(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("cleared %d history entr%s\n", resp.Count, plural(resp.Count, "y", "ies"))
					return nil
				}

				resp, err := c.History(ctx)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				if len(resp.Entries) == 0 {
					fmt.Printf("History is empty (cap %d).\n", resp.Cap)
					return nil
				}
				tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
				_, _ = fmt.Fprintf(tw, "WHEN\tTYPE\tCONTENT\n")
				// newest first, like the list view
				for i := len(resp.Entries) - 1; i >= 0; i-- {
					e := resp.Entries[i]
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", fmtAge(e.Time), e.Kind, truncate(oneLine(e.Content), 70))
				}
				_ = tw.Flush()
				fmt.Printf("%d of %d entries\n", len(resp.Entries), resp.Cap)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Bool("clear", false, "delete every history entry")
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the shelf file to FILE (or stdout)",
		Long: `Copies the daemon's current dropshelf_items.json. The output can be fed
back with "dropshelf import", on this machine or another.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				data, err := c.Export(ctx)
				if err != nil {
					return err
				}
				if len(args) == 0 || args[0] == "-" {
					_, err := os.Stdout.Write(data)
					return err
				}
				if err := atomicfile.Write(args[0], data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "exported to %s\n", args[0])
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge an exported shelf file into the shelf",
		Long: `Adds every item of an exported file. Items already on the shelf are
merged (favorite flag, tags and use count are kept), others are added with
their original metadata. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Import(ctx, data)
				if err != nil {
					return err
				}
				fmt.Printf("imported %d item(s)\n", resp.Count)
				return nil
			})
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
