package shell

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// preferredIconSize is the pixel size IconTheme aims for.
const preferredIconSize = 48

// IconTheme finds PNG icons in freedesktop icon theme directories.
type IconTheme struct {
	dirs   []string
	themes []string

	mu    sync.Mutex
	cache map[string]*Icon
}

// NewIconTheme searches themes in order under each base dir. A nil dirs
// uses the XDG defaults.
func NewIconTheme(dirs []string, themes ...string) *IconTheme {
	if dirs == nil {
		dirs = defaultIconDirs()
	}
	if len(themes) == 0 {
		themes = []string{"hicolor", "Adwaita", "breeze", "Papirus", "gnome"}
	}
	return &IconTheme{dirs: dirs, themes: themes, cache: map[string]*Icon{}}
}

func defaultIconDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".icons"))
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "icons"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		dirs = append(dirs, filepath.Join(d, "icons"))
	}
	return append(dirs, "/usr/share/pixmaps")
}

// Lookup returns the first of names that exists as a PNG, or nil.
func (t *IconTheme) Lookup(names ...string) *Icon {
	for _, name := range names {
		if icon := t.lookupOne(name); icon != nil {
			return icon
		}
	}
	return nil
}

func (t *IconTheme) lookupOne(name string) *Icon {
	t.mu.Lock()
	icon, ok := t.cache[name]
	t.mu.Unlock()
	if ok {
		return icon
	}

	if path := t.find(name); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			icon = &Icon{Name: name, PNG: data}
		}
	}

	t.mu.Lock()
	t.cache[name] = icon
	t.mu.Unlock()
	return icon
}

var sizeDir = regexp.MustCompile(`(?:^|/)(\d+)(?:x\d+)?(?:@\d+)?(?:/|$)`)

func (t *IconTheme) find(name string) string {
	file := name + ".png"
	for _, dir := range t.dirs {
		for _, theme := range t.themes {
			root := filepath.Join(dir, theme)
			var matches []string
			for _, pattern := range []string{"*/*/" + file, "*/" + file} {
				m, _ := filepath.Glob(filepath.Join(root, pattern))
				matches = append(matches, m...)
			}
			if best := closestSize(root, matches); best != "" {
				return best
			}
		}
		// Unthemed pixmaps directory.
		if p := filepath.Join(dir, file); fileExists(p) {
			return p
		}
	}
	return ""
}

// closestSize picks the match whose size directory is nearest to
// preferredIconSize. Matches without a size sort last.
func closestSize(root string, matches []string) string {
	best, bestDist := "", -1
	for _, m := range matches {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			continue
		}
		dist := 1 << 20
		if sm := sizeDir.FindStringSubmatch(filepath.ToSlash(rel)); sm != nil {
			if n, err := strconv.Atoi(sm[1]); err == nil {
				dist = abs(n - preferredIconSize)
			}
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && strings.Compare(m, best) < 0) {
			best, bestDist = m, dist
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
