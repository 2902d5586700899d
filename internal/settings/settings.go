// Package settings loads, saves and watches dropshelf_settings.json.
//
// Values are layered by viper: built-in defaults, then the settings file,
// then DROPSHELF_* environment variables. Saving always goes through
// atomicfile so a crash mid-write never loses the previous file.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"go.klb.dev/dropshelf/internal/atomicfile"
	"go.klb.dev/dropshelf/internal/history"
)

// FileName is the settings file inside the data directory.
const FileName = "dropshelf_settings.json"

const (
	DefaultHotkey       = "ctrl+shift+x"
	DefaultWindowWidth  = 360
	DefaultWindowHeight = 600
)

// Settings is the user-editable configuration. WindowX and WindowY are nil
// until the window has been placed once.
type Settings struct {
	MonitorClipboard bool   `mapstructure:"monitor_clipboard" json:"monitor_clipboard"`
	Hotkey           string `mapstructure:"hotkey" json:"hotkey"`
	CloseToTray      bool   `mapstructure:"close_to_tray" json:"close_to_tray"`
	MaxHistory       int    `mapstructure:"max_history" json:"max_history"`
	WindowX          *int   `mapstructure:"window_x" json:"window_x,omitempty"`
	WindowY          *int   `mapstructure:"window_y" json:"window_y,omitempty"`
	WindowWidth      int    `mapstructure:"window_width" json:"window_width"`
	WindowHeight     int    `mapstructure:"window_height" json:"window_height"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		MonitorClipboard: true,
		Hotkey:           DefaultHotkey,
		CloseToTray:      true,
		MaxHistory:       history.DefaultCap,
		WindowWidth:      DefaultWindowWidth,
		WindowHeight:     DefaultWindowHeight,
	}
}

// Normalize clamps out-of-range values.
func (s Settings) Normalize() Settings {
	s.MaxHistory = history.ClampCap(s.MaxHistory)
	s.Hotkey = strings.TrimSpace(s.Hotkey)
	if s.Hotkey == "" {
		s.Hotkey = DefaultHotkey
	}
	if s.WindowWidth <= 0 {
		s.WindowWidth = DefaultWindowWidth
	}
	if s.WindowHeight <= 0 {
		s.WindowHeight = DefaultWindowHeight
	}
	return s
}

// Equal reports whether two settings values are the same.
func (s Settings) Equal(o Settings) bool {
	return s.MonitorClipboard == o.MonitorClipboard &&
		s.Hotkey == o.Hotkey &&
		s.CloseToTray == o.CloseToTray &&
		s.MaxHistory == o.MaxHistory &&
		intPtrEqual(s.WindowX, o.WindowX) &&
		intPtrEqual(s.WindowY, o.WindowY) &&
		s.WindowWidth == o.WindowWidth &&
		s.WindowHeight == o.WindowHeight
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Store holds the current settings for one file.
type Store struct {
	path   string
	v      *viper.Viper
	logger *slog.Logger

	mu      sync.Mutex
	current Settings
}

// Open reads path. A missing or unreadable file is not fatal: the returned
// Store falls back to defaults (or the .bak copy) and the error says why.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("DROPSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Store{path: path, v: v, logger: logger}

	data, fromBackup, err := atomicfile.Read(path, validJSON)
	switch {
	case errors.Is(err, atomicfile.ErrNoFile):
		err = nil
	case err != nil:
		err = fmt.Errorf("read settings: %w", err)
	default:
		if fromBackup {
			logger.Warn("settings file unreadable, using backup", "path", path)
		}
		if rerr := v.ReadConfig(bytes.NewReader(data)); rerr != nil {
			err = fmt.Errorf("parse settings: %w", rerr)
		}
	}

	cur, uerr := unmarshal(v)
	if uerr != nil {
		err = errors.Join(err, uerr)
		cur = Defaults()
	}
	s.current = cur
	return s, err
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("monitor_clipboard", d.MonitorClipboard)
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("close_to_tray", d.CloseToTray)
	v.SetDefault("max_history", d.MaxHistory)
	v.SetDefault("window_width", d.WindowWidth)
	v.SetDefault("window_height", d.WindowHeight)
}

func unmarshal(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s.Normalize(), nil
}

func validJSON(b []byte) error {
	var m map[string]any
	return json.Unmarshal(b, &m)
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save normalizes next, writes it and makes it current.
func (s *Store) Save(next Settings) (Settings, error) {
	next = next.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicfile.WriteJSON(s.path, next); err != nil {
		return s.current, fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	return next, nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	next := s.Get()
	fn(&next)
	return s.Save(next)
}

// Watch calls fn whenever the file changes on disk to something that
// differs from the current settings. Invalid edits are logged and ignored.
func (s *Store) Watch(fn func(old, next Settings)) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := unmarshal(s.v)
		if err != nil {
			s.logger.Warn("settings reload failed", "path", e.Name, "err", err)
			return
		}
		s.mu.Lock()
		old := s.current
		changed := !old.Equal(next)
		s.current = next
		s.mu.Unlock()

		if changed {
			s.logger.Info("settings reloaded", "path", e.Name)
			fn(old, next)
		}
	})
	s.v.WatchConfig()
}
