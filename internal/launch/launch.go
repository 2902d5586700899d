// Package launch hands shelf items to the desktop: URLs open in the browser,
// files in their default application.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.klb.dev/dropshelf/internal/shelf"
)

// ErrMissing is returned when a file item no longer exists.
var ErrMissing = errors.New("launch: file does not exist")

// start runs a detached command. Replaced in tests.
var start = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	configure(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

// Target returns what would be opened for an item: URLs get a scheme,
// files must exist unless they name a virtual shell object.
func Target(kind shelf.Kind, content string) (string, error) {
	switch kind {
	case shelf.KindURL:
		if strings.HasPrefix(strings.ToLower(content), "www.") {
			return "http://" + content, nil
		}
		return content, nil
	case shelf.KindFile:
		if isVirtual(content) {
			return content, nil
		}
		if _, err := os.Stat(content); err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissing, content)
		}
		return content, nil
	default:
		return "", fmt.Errorf("launch: cannot open %s items", kind)
	}
}

// Open opens a URL or file item.
func Open(kind shelf.Kind, content string) error {
	target, err := Target(kind, content)
	if err != nil {
		return err
	}
	name, args := openCommand(target)
	return start(name, args...)
}

// Reveal shows a file item in the file manager, selected where the
// platform supports it.
func Reveal(path string) error {
	if isVirtual(path) {
		return Open(shelf.KindFile, path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrMissing, path)
	}
	name, args := revealCommand(filepath.Clean(path))
	return start(name, args...)
}

func isVirtual(s string) bool {
	if strings.HasPrefix(s, "::{") || strings.HasPrefix(strings.ToLower(s), "shell:") {
		return true
	}
	return strings.Contains(s, ":///") && !strings.HasPrefix(s, "file:")
}
