package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrMalformed wraps every native-format parse failure.
var ErrMalformed = errors.New("malformed native data")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// dropFilesHeaderSize is sizeof(DROPFILES): pFiles, pt.x, pt.y, fNC, fWide.
const dropFilesHeaderSize = 20

// ParseDropFiles decodes a CF_HDROP DROPFILES block into its file names.
func ParseDropFiles(b []byte) ([]string, error) {
	if len(b) < dropFilesHeaderSize {
		return nil, malformed("DROPFILES header truncated (%d bytes)", len(b))
	}
	off := binary.LittleEndian.Uint32(b[0:4])
	wide := binary.LittleEndian.Uint32(b[16:20]) != 0
	if off < dropFilesHeaderSize || int(off) > len(b) {
		return nil, malformed("DROPFILES file list offset %d out of range", off)
	}
	list := b[off:]

	var names []string
	for len(list) > 0 {
		var raw []byte
		var n int
		if wide {
			end := indexUTF16Nul(list)
			if end < 0 {
				return names, malformed("DROPFILES wide list not terminated")
			}
			raw, n = list[:end], end+2
		} else {
			end := bytes.IndexByte(list, 0)
			if end < 0 {
				return names, malformed("DROPFILES ANSI list not terminated")
			}
			raw, n = list[:end], end+1
		}
		if len(raw) == 0 {
			break // double NUL ends the list
		}
		var s string
		var err error
		if wide {
			s, err = DecodeUTF16(raw)
		} else {
			s, err = DecodeANSI(raw)
		}
		if err != nil {
			return names, malformed("DROPFILES name: %v", err)
		}
		names = append(names, s)
		list = list[n:]
	}
	return names, nil
}

// EncodeDropFiles builds a wide-character DROPFILES block listing paths, as
// placed on the clipboard under CF_HDROP.
func EncodeDropFiles(paths ...string) []byte {
	b := make([]byte, dropFilesHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], dropFilesHeaderSize)
	binary.LittleEndian.PutUint32(b[16:20], 1)
	for _, p := range paths {
		b = append(b, EncodeUTF16(p)...)
	}
	return append(b, 0, 0)
}

func indexUTF16Nul(b []byte) int {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			return i
		}
	}
	return -1
}

// ParseCIDA splits a "Shell IDList Array" (CIDA) into absolute identifier
// lists, each the parent folder's list joined with one child. Children that
// cannot be parsed are skipped; their errors are joined into err alongside
// the lists that did parse.
func ParseCIDA(b []byte) ([][]byte, error) {
	if len(b) < 4 {
		return nil, malformed("CIDA header truncated")
	}
	cidl := binary.LittleEndian.Uint32(b[0:4])
	if cidl == 0 {
		return nil, nil
	}
	tableEnd := 4 + 4*(uint64(cidl)+1)
	if tableEnd > uint64(len(b)) {
		return nil, malformed("CIDA offset table for %d items exceeds %d bytes", cidl, len(b))
	}
	offset := func(i uint32) uint32 { return binary.LittleEndian.Uint32(b[4+4*i:]) }

	parent, err := idListAt(b, offset(0))
	if err != nil {
		return nil, fmt.Errorf("CIDA parent: %w", err)
	}

	var lists [][]byte
	var errs []error
	for i := uint32(1); i <= cidl; i++ {
		child, err := idListAt(b, offset(i))
		if err != nil {
			errs = append(errs, fmt.Errorf("CIDA child %d: %w", i-1, err))
			continue
		}
		abs := make([]byte, 0, len(parent)+len(child)+2)
		abs = append(abs, parent...)
		abs = append(abs, child...)
		abs = append(abs, 0, 0)
		lists = append(lists, abs)
	}
	return lists, errors.Join(errs...)
}

// idListAt returns the SHITEMIDs starting at off, without the terminator.
func idListAt(b []byte, off uint32) ([]byte, error) {
	pos := uint64(off)
	for {
		if pos+2 > uint64(len(b)) {
			return nil, malformed("item list at %d runs past end", off)
		}
		cb := uint64(binary.LittleEndian.Uint16(b[pos:]))
		if cb == 0 {
			return b[off:pos], nil
		}
		if cb < 2 || pos+cb > uint64(len(b)) {
			return nil, malformed("item id at %d has bad size %d", pos, cb)
		}
		pos += cb
	}
}

// ParseURIList returns the local paths named by file:// lines of a
// text/uri-list body. Comments and non-file URIs are skipped.
func ParseURIList(b []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\x00\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := FileURIPath(line); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// FileURIPath converts a file:// URI to a native path.
func FileURIPath(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || !strings.EqualFold(u.Scheme, "file") {
		return "", false
	}
	p := u.Path
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' && isLetter(p[1]) {
		p = p[1:] // file:///C:/x
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		p = "//" + u.Host + p
	}
	if p == "" {
		return "", false
	}
	return filepath.FromSlash(p), true
}

func isLetter(c byte) bool { return c|0x20 >= 'a' && c|0x20 <= 'z' }

// DecodeUTF16 decodes little-endian UTF-16, stopping at the first NUL.
func DecodeUTF16(b []byte) (string, error) {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	if i := indexUTF16Nul(b); i >= 0 {
		b = b[:i]
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeANSI decodes Windows-1252 text, stopping at the first NUL.
func DecodeANSI(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeUTF16 encodes s as little-endian UTF-16 with a terminating NUL.
func EncodeUTF16(s string) []byte {
	out, _ := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	return append(out, 0, 0)
}
