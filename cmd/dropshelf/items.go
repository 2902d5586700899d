package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/message"
	"go.klb.dev/dropshelf/internal/rpc"
	"go.klb.dev/dropshelf/internal/shelf"
)

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list [query]",
		Aliases: []string{"ls"},
		Short:   "List shelf items",
		Long: `Lists the items on the shelf, newest first unless --sort is given.
The optional query matches content and tags, case-insensitively.

The # column can be used wherever a command takes an ITEM argument.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &message.ListRequest{
				Tab:  shelf.TabAll,
				Kind: shelf.Kind(v.GetString("kind")),
				Sort: v.GetString("sort"),
			}
			if v.GetBool("fav") {
				req.Tab = shelf.TabFavorites
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			if cmd.Flags().Changed("asc") {
				asc := v.GetBool("asc")
				req.Ascending = &asc
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.List(ctx, req)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				printItems(resp.Items)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Bool("fav", false, "show the Favorites tab instead of the main view")
	f.String("kind", "", "only show items of this type: text|url|file")
	f.String("sort", "", "view order: newest|oldest|name|type|size|used")
	f.Bool("asc", false, "ascending order (default depends on --sort)")
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func printItems(items []message.Item) {
	if len(items) == 0 {
		fmt.Println("Shelf is empty.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "#\t\tTYPE\tLABEL\tTAGS\tUSED\tADDED\tID\n")
	for i, it := range items {
		flag := ""
		switch {
		case it.Favorite && it.Hidden:
			flag = "☆"
		case it.Favorite:
			flag = "★"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i+1, flag, it.Kind, truncate(oneLine(it.Label), 60),
			strings.Join(it.Tags, ","), it.UseCount,
			fmtAge(it.DateAdded), shortID(it.ID),
		)
	}
	_ = tw.Flush()
}

func newAddCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "add CONTENT...",
		Short: "Add text, a URL or a path to the shelf",
		Long: `Adds each argument as one item. The type is inferred (URLs by prefix,
existing paths as files) unless --kind is given. Use "-" to read one item
from stdin.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			kind := shelf.Kind(v.GetString("kind"))
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				for _, arg := range args {
					content, err := readArg(arg)
					if err != nil {
						return err
					}
					if kind == shelf.KindFile || (kind == "" && looksLikePath(content)) {
						if abs, err := filepath.Abs(content); err == nil {
							content = abs
						}
					}
					resp, err := c.Add(ctx, &message.AddRequest{
						Kind:     kind,
						Content:  content,
						Favorite: v.GetBool("fav"),
						Tags:     v.GetStringSlice("tag"),
					})
					if err != nil {
						return err
					}
					fmt.Printf("added %s %s\n", resp.Item.Kind, oneLine(resp.Item.Label))
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.String("kind", "", "item type: text|url|file (default: inferred)")
	f.Bool("fav", false, "mark as favorite")
	f.StringSlice("tag", nil, "tags to attach (repeatable)")
	addConfigFlag(cmd)

	return cmd
}

func readArg(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func looksLikePath(s string) bool {
	if strings.ContainsAny(s, "\n") {
		return false
	}
	_, err := os.Stat(s)
	return err == nil
}

func newDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop PATH...",
		Short: "Drop files onto the shelf as a drag-and-drop would",
		Long: `Sends the paths to the daemon as a text/uri-list drag payload, the same
format file managers use, so they go through the normal drop decoding.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var b strings.Builder
			for _, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return err
				}
				u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
				if !strings.HasPrefix(u.Path, "/") {
					u.Path = "/" + u.Path
				}
				b.WriteString(u.String())
				b.WriteString("\r\n")
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Drop(ctx, &message.DropRequest{Formats: map[string][]byte{
					string(decode.FormatURIList): []byte(b.String()),
				}})
				if err != nil {
					return err
				}
				fmt.Printf("dropped %d item(s)\n", len(resp.Items))
				return nil
			})
		},
	}
	return cmd
}

func newFavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fav ITEM",
		Short: "Toggle an item's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				id, err := resolveRef(ctx, c, args[0], shelf.TabAll)
				if err != nil {
					return err
				}
				resp, err := c.ToggleFavorite(ctx, id)
				if err != nil {
					return err
				}
				state := "unfavorited"
				if resp.Item.Favorite {
					state = "favorited"
				}
				fmt.Printf("%s %s\n", state, oneLine(resp.Item.Label))
				return nil
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "rm ITEM",
		Aliases: []string{"remove"},
		Short:   "Remove an item (favorites are hidden, not deleted)",
		Long: `Removes an item the way the shelf's delete key does: in the main view a
favorite is only hidden, anything else is deleted (undo with "dropshelf
undo"). With --fav the item is removed from Favorites instead.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			tab := shelf.TabAll
			if v.GetBool("fav") {
				tab = shelf.TabFavorites
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				id, err := resolveRef(ctx, c, args[0], tab)
				if err != nil {
					return err
				}
				resp, err := c.Remove(ctx, &message.RemoveRequest{ID: id, Tab: tab})
				if err != nil {
					return err
				}
				fmt.Println(resp.Removal)
				return nil
			})
		},
	}

	cmd.Flags().Bool("fav", false, "ITEM refers to the Favorites tab")
	addConfigFlag(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ITEM...",
		Short: "Delete several items as one undoable action",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				ids := make([]string, 0, len(args))
				for _, a := range args {
					id, err := resolveRef(ctx, c, a, shelf.TabAll)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				resp, err := c.DeleteBatch(ctx, ids)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d item(s)\n", resp.Count)
				return nil
			})
		},
	}
}

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the most recently deleted batch",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Undo(ctx)
				if err != nil {
					return err
				}
				if resp.Count == 0 {
					fmt.Println("nothing to undo")
					return nil
				}
				fmt.Printf("restored %d item(s)\n", resp.Count)
				return nil
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Clear the main view (favorites are kept, hidden)",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			if !v.GetBool("yes") {
				return fmt.Errorf("clear deletes every non-favorite item; pass --yes to confirm")
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("cleared %d item(s); \"dropshelf undo\" restores them\n", resp.Count)
				return nil
			})
		},
	}

	cmd.Flags().Bool("yes", false, "confirm")
	addConfigFlag(cmd)
	return cmd
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ITEM POSITION",
		Short: "Move an item to a 1-based position on the shelf",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil || pos < 1 {
				return fmt.Errorf("position must be a positive number")
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				id, err := resolveRef(ctx, c, args[0], shelf.TabAll)
				if err != nil {
					return err
				}
				return c.Move(ctx, id, pos-1)
			})
		},
	}
}

func newSortCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:       "sort KEY",
		Short:     "Reorder the shelf itself: newest|oldest|name|type|size|used",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"newest", "oldest", "name", "type", "size", "used"},
		PreRunE:   func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &message.SortRequest{Key: args[0]}
			if cmd.Flags().Changed("asc") {
				asc := v.GetBool("asc")
				req.Ascending = &asc
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				return c.Sort(ctx, req)
			})
		},
	}

	cmd.Flags().Bool("asc", false, "ascending order (default depends on KEY)")
	addConfigFlag(cmd)
	return cmd
}

func newUseCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "use ITEM",
		Aliases: []string{"copy"},
		Short:   "Copy an item back to the clipboard (or open/reveal it)",
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			action := message.UseCopy
			switch {
			case v.GetBool("open"):
				action = message.UseOpen
			case v.GetBool("reveal"):
				action = message.UseReveal
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				id, err := resolveRef(ctx, c, args[0], shelf.TabAll)
				if err != nil {
					return err
				}
				resp, err := c.Use(ctx, id, action)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", action, oneLine(resp.Item.Label))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Bool("open", false, "open the URL or file instead of copying it")
	f.Bool("reveal", false, "show the file in the file manager")
	cmd.MarkFlagsMutuallyExclusive("open", "reveal")
	addConfigFlag(cmd)
	return cmd
}

func newTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag ITEM [TAG...]",
		Short: "Replace an item's tags (no TAG clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var tags []string
			for _, a := range args[1:] {
				tags = append(tags, strings.Split(a, ",")...)
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				id, err := resolveRef(ctx, c, args[0], shelf.TabAll)
				if err != nil {
					return err
				}
				resp, err := c.SetTags(ctx, id, tags)
				if err != nil {
					return err
				}
				fmt.Printf("%s: [%s]\n", oneLine(resp.Item.Label), strings.Join(resp.Item.Tags, ", "))
				return nil
			})
		},
	}
}

func newInfoCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "info PATH|ID",
		Short:   "Describe a path or shell object the way the shelf shows it",
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			target := args[0]
			if looksLikePath(target) {
				if abs, err := filepath.Abs(target); err == nil {
					target = abs
				}
			}
			return withClient(func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Resolve(ctx, target)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					resp.Icon = nil
					return printJSON(resp)
				}
				tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Name:\t%s\n", resp.DisplayName)
				if resp.TypeName != "" {
					fmt.Fprintf(tw, "Type:\t%s\n", resp.TypeName)
				}
				if resp.Info != "" {
					fmt.Fprintf(tw, "Info:\t%s\n", resp.Info)
				}
				fmt.Fprintf(tw, "Resolved by:\t%s\n", resp.Source)
				fmt.Fprintf(tw, "Icon:\t%t\n", resp.HasIcon)
				return tw.Flush()
			})
		},
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)
	return cmd
}

// resolveRef turns a list position (1-based, as printed by "list") or an id
// or id prefix into an item id.
func resolveRef(ctx context.Context, c *rpc.Client, ref string, tab shelf.Tab) (string, error) {
	list, err := c.List(ctx, &message.ListRequest{Tab: tab})
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list.Items) {
			return "", fmt.Errorf("no item #%d (the view has %d)", n, len(list.Items))
		}
		return list.Items[n-1].ID, nil
	}

	all := list.Items
	if tab != shelf.TabFavorites {
		favs, err := c.List(ctx, &message.ListRequest{Tab: shelf.TabFavorites})
		if err != nil {
			return "", err
		}
		all = append(all, favs.Items...)
	}
	var match string
	for _, it := range all {
		if it.ID == ref {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			if match != "" && match != it.ID {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no item matches %q", ref)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Second)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}
