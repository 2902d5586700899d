package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/dropshelf/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change shelf settings",
		Long: `Shows the settings stored in dropshelf_settings.json. The file is edited
directly, so this works whether or not the daemon is running; a running
daemon notices the change and applies it (monitoring and history size take
effect immediately).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := openSettings(v)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(st.Get())
			}
			printSettings(st.Path(), st.Get())
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.Bool("json", false, "output raw JSON")
	pf.String("data-dir", defaultDataDir(), "directory holding the settings file")
	pf.String("config", "", "path to config file (overrides auto-discovery)")

	cmd.AddCommand(newSettingsSetCmd(v), newSettingsResetCmd(v))
	return cmd
}

func newSettingsSetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Long: `Keys: monitor_clipboard, hotkey, close_to_tray, max_history (0-1000),
window_x, window_y, window_width, window_height. Use "none" to clear
window_x or window_y.`,
		Args:    cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := openSettings(v)
			if err != nil {
				return err
			}
			next := st.Get()
			if err := applySetting(&next, args[0], args[1]); err != nil {
				return err
			}
			saved, err := st.Save(next)
			if err != nil {
				return err
			}
			printSettings(st.Path(), saved)
			return nil
		},
	}
}

func newSettingsResetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "reset",
		Short:   "Restore the default settings",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := openSettings(v)
			if err != nil {
				return err
			}
			saved, err := st.Save(settings.Defaults())
			if err != nil {
				return err
			}
			printSettings(st.Path(), saved)
			return nil
		},
	}
}

// openSettings opens the settings file under --data-dir. A damaged file
// still yields a usable store; the problem is reported on stderr.
func openSettings(v *viper.Viper) (*settings.Store, error) {
	dir := v.GetString("data-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	st, err := settings.Open(filepath.Join(dir, settings.FileName), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return st, nil
}

func applySetting(s *settings.Settings, key, val string) error {
	switch key {
	case "monitor_clipboard", "close_to_tray":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s: want true or false", key)
		}
		if key == "monitor_clipboard" {
			s.MonitorClipboard = b
		} else {
			s.CloseToTray = b
		}
	case "hotkey":
		s.Hotkey = val
	case "max_history", "window_width", "window_height":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: want a number", key)
		}
		switch key {
		case "max_history":
			s.MaxHistory = n
		case "window_width":
			s.WindowWidth = n
		default:
			s.WindowHeight = n
		}
	case "window_x", "window_y":
		var p *int
		if val != "none" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s: want a number or none", key)
			}
			p = &n
		}
		if key == "window_x" {
			s.WindowX = p
		} else {
			s.WindowY = p
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func printSettings(path string, s settings.Settings) {
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", path)
	fmt.Fprintf(tw, "monitor_clipboard\t%t\n", s.MonitorClipboard)
	fmt.Fprintf(tw, "hotkey\t%s\n", s.Hotkey)
	fmt.Fprintf(tw, "close_to_tray\t%t\n", s.CloseToTray)
	fmt.Fprintf(tw, "max_history\t%d\n", s.MaxHistory)
	fmt.Fprintf(tw, "window\t%s %dx%d\n", fmtPos(s.WindowX, s.WindowY), s.WindowWidth, s.WindowHeight)
	_ = tw.Flush()
}

func fmtPos(x, y *int) string {
	if x == nil || y == nil {
		return "(auto)"
	}
	return fmt.Sprintf("%d,%d", *x, *y)
}
