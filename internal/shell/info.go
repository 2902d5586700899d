package shell

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/h2non/filetype"
)

// CountCap is the most directory entries CountItems will enumerate.
const CountCap = 999

// CountItems counts the entries of dir, stopping after CountCap. capped
// reports that the directory holds more than that.
func CountItems(dir string) (n int, capped bool, err error) {
	f, err := os.Open(dir)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	for n <= CountCap {
		names, err := f.Readdirnames(CountCap + 1 - n)
		n += len(names)
		if errors.Is(err, io.EOF) || len(names) == 0 {
			break
		}
		if err != nil {
			return 0, false, err
		}
	}
	if n > CountCap {
		return CountCap, true, nil
	}
	return n, false, nil
}

// FormatCount renders a CountItems result.
func FormatCount(n int, capped bool) string {
	switch {
	case capped:
		return fmt.Sprintf("%d+ items", CountCap+1)
	case n == 1:
		return "1 item"
	default:
		return fmt.Sprintf("%d items", n)
	}
}

// InfoLine is the one-line summary shown under a file item: an item count
// for folders, size and type for files, "missing" when the path is gone.
func InfoLine(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "missing"
		}
		return "unavailable"
	}
	if fi.IsDir() {
		n, capped, err := CountItems(path)
		if err != nil {
			return "folder"
		}
		return FormatCount(n, capped)
	}
	return units.HumanSize(float64(fi.Size())) + " · " + DetectMIME(path)
}

// DetectMIME sniffs the file header and falls back to the extension.
func DetectMIME(path string) string {
	if kind, err := filetype.MatchFile(path); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return MIMEByExtension(path)
}

// textTypes covers plain-text formats that have no magic number for
// filetype to match and are missing from minimal system MIME tables.
var textTypes = map[string]string{
	"txt":  "text/plain",
	"log":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"json": "application/json",
	"yaml": "application/yaml",
	"yml":  "application/yaml",
	"toml": "application/toml",
	"go":   "text/x-go",
	"py":   "text/x-python",
	"sh":   "application/x-shellscript",
}

// MIMEByExtension maps a file name to a MIME type without touching disk.
func MIMEByExtension(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "application/octet-stream"
	}
	if t, ok := textTypes[ext]; ok {
		return t
	}
	if t := filetype.GetType(ext); t != filetype.Unknown {
		return t.MIME.Value
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}

// MIMEIconNames lists freedesktop icon names for a MIME type, most specific
// first.
func MIMEIconNames(mimeType string) []string {
	if mimeType == "inode/directory" {
		return []string{"folder"}
	}
	major, _, _ := strings.Cut(mimeType, "/")
	names := []string{strings.ReplaceAll(mimeType, "/", "-")}
	switch major {
	case "text", "image", "audio", "video", "font", "package":
		names = append(names, major+"-x-generic")
	case "application":
		names = append(names, "application-x-generic")
	}
	return append(names, "text-x-generic", "unknown")
}
