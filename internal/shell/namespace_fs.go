//go:build !windows

package shell

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func platform() (Namespace, Attributes) {
	theme := NewIconTheme(nil)
	return &FSNamespace{Theme: theme}, &ExtAttributes{Theme: theme}
}

type virtualObject struct {
	label string
	icons []string
}

// virtualObjects are shell locations without a filesystem path. The
// CLSID forms appear in shelf files written on Windows.
var virtualObjects = map[string]virtualObject{
	"trash:///":    {"Trash", []string{"user-trash", "user-trash-full"}},
	"computer:///": {"Computer", []string{"computer", "user-desktop"}},
	"recent:///":   {"Recent", []string{"document-open-recent", "folder-recent"}},
	"network:///":  {"Network", []string{"network-workgroup", "folder-remote"}},

	"::{645FF040-5081-101B-9F08-00AA002F954E}": {"Recycle Bin", []string{"user-trash"}},
	"::{20D04FE0-3AEA-1069-A2D8-08002B30309D}": {"This PC", []string{"computer"}},
	"::{F02C1A0D-BE21-4350-88B0-7367FC96EF3C}": {"Network", []string{"network-workgroup"}},
	"::{21EC2020-3AEA-1069-A2DD-08002B30309D}": {"Control Panel", []string{"preferences-system"}},
}

func lookupVirtual(id string) (virtualObject, bool) {
	if strings.HasPrefix(id, "::{") {
		v, ok := virtualObjects[strings.ToUpper(id)]
		return v, ok
	}
	// trash:, trash:/ and trash:/// name the same place.
	scheme, rest, found := strings.Cut(id, ":")
	if !found || strings.Trim(rest, "/") != "" {
		return virtualObject{}, false
	}
	v, ok := virtualObjects[strings.ToLower(scheme)+":///"]
	return v, ok
}

// FSNamespace parses absolute paths, file:// URIs and a fixed set of
// virtual locations.
type FSNamespace struct {
	Theme *IconTheme
}

// Parse returns a list for an existing path or a known virtual location.
func (n *FSNamespace) Parse(id string) (*IDList, error) {
	if _, ok := lookupVirtual(id); ok {
		return newHandle(0, id, nil), nil
	}
	path, err := localPath(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Lstat(path); err != nil {
		return nil, err
	}
	return newHandle(0, path, nil), nil
}

// Describe names a parsed list. Serialized lists from foreign shells are not
// understood.
func (n *FSNamespace) Describe(list *IDList) (Description, error) {
	if list == nil || list.location == "" {
		return Description{}, ErrUnsupported
	}
	if v, ok := lookupVirtual(list.location); ok {
		return Description{
			DisplayName: v.label,
			ParsingName: list.location,
			TypeName:    "folder",
			Icon:        n.lookup(v.icons...),
		}, nil
	}

	fi, err := os.Stat(list.location)
	if err != nil {
		return Description{}, err
	}
	mimeType := "inode/directory"
	if !fi.IsDir() {
		mimeType = DetectMIME(list.location)
	}
	return Description{
		DisplayName: displayBase(list.location),
		ParsingName: list.location,
		TypeName:    mimeType,
		Icon:        n.lookup(MIMEIconNames(mimeType)...),
	}, nil
}

func (n *FSNamespace) lookup(names ...string) *Icon {
	if n.Theme == nil {
		return nil
	}
	return n.Theme.Lookup(names...)
}

// ExtAttributes describes a path from its extension alone.
type ExtAttributes struct {
	Theme *IconTheme
}

// Attributes never fails for a non-empty path; missing files are fine.
func (a *ExtAttributes) Attributes(path string) (Description, error) {
	if strings.TrimSpace(path) == "" {
		return Description{}, ErrUnsupported
	}
	if p, err := localPath(path); err == nil {
		path = p
	}
	mimeType := MIMEByExtension(path)
	d := Description{
		DisplayName: displayBase(path),
		ParsingName: path,
		TypeName:    mimeType,
	}
	if a.Theme != nil {
		d.Icon = a.Theme.Lookup(MIMEIconNames(mimeType)...)
	}
	return d, nil
}

// localPath turns an absolute path or file:// URI into a clean local path.
func localPath(id string) (string, error) {
	if strings.HasPrefix(id, "file://") {
		u, err := url.Parse(id)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", id, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("%w: remote file URI %q", ErrUnsupported, id)
		}
		return filepath.Clean(u.Path), nil
	}
	if !filepath.IsAbs(id) {
		return "", fmt.Errorf("%w: relative path %q", ErrUnsupported, id)
	}
	return filepath.Clean(id), nil
}

func displayBase(path string) string {
	if path == "/" {
		return "/"
	}
	return LastSegment(path)
}
