//go:build !windows && !darwin

package launch

import (
	"os"
	"os/exec"
	"path/filepath"
)

func configure(*exec.Cmd) {}

func openCommand(target string) (string, []string) { return "xdg-open", []string{target} }

// xdg-open has no selection support; folders open themselves, files open
// their parent.
func revealCommand(path string) (string, []string) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return "xdg-open", []string{path}
	}
	return "xdg-open", []string{filepath.Dir(path)}
}
