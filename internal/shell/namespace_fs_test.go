//go:build !windows

package shell

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTheme(t *testing.T) *IconTheme {
	t.Helper()
	base := t.TempDir()
	for _, rel := range []string{
		"hicolor/16x16/places/user-trash.png",
		"hicolor/48x48/places/user-trash.png",
		"hicolor/48x48/mimetypes/text-plain.png",
		"hicolor/32x32/places/folder.png",
	} {
		p := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
	return NewIconTheme([]string{base}, "hicolor")
}

func TestIconThemePrefersClosestSize(t *testing.T) {
	theme := testTheme(t)
	icon := theme.Lookup("missing-name", "user-trash")
	require.NotNil(t, icon)
	assert.Equal(t, "user-trash", icon.Name)
	assert.Equal(t, "hicolor/48x48/places/user-trash.png", string(icon.PNG))
	assert.Nil(t, theme.Lookup("nothing-here"))
}

func TestFSNamespaceVirtual(t *testing.T) {
	ns := &FSNamespace{Theme: testTheme(t)}
	r := NewResolver(WithNamespace(ns), WithAttributes(&ExtAttributes{}))

	for _, id := range []string{"trash:///", "trash:", "TRASH:/"} {
		res := r.Resolve(id)
		assert.Equal(t, "Trash", res.DisplayName, id)
		assert.Equal(t, SourceLive, res.Source, id)
		require.NotNil(t, res.Icon, id)
	}
	res := r.Resolve("::{645ff040-5081-101b-9f08-00aa002f954e}")
	assert.Equal(t, "Recycle Bin", res.DisplayName)
}

func TestFSNamespaceRealFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	ns := &FSNamespace{Theme: testTheme(t)}
	r := NewResolver(WithNamespace(ns), WithAttributes(&ExtAttributes{Theme: ns.Theme}))

	res := r.Resolve(file)
	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, "notes.txt", res.DisplayName)
	assert.Equal(t, "text/plain", res.TypeName)
	require.NotNil(t, res.Icon)
	assert.Equal(t, "text-plain", res.Icon.Name)

	res = r.Resolve("file://" + dir)
	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, filepath.Base(dir), res.DisplayName)
	require.NotNil(t, res.Icon)
	assert.Equal(t, "folder", res.Icon.Name)
}

func TestFSNamespaceDeletedFileUsesAttributes(t *testing.T) {
	ns := &FSNamespace{Theme: testTheme(t)}
	r := NewResolver(WithNamespace(ns), WithAttributes(&ExtAttributes{Theme: ns.Theme}))

	res := r.Resolve("/no/such/dir/old.txt")
	assert.Equal(t, SourceAttributes, res.Source)
	assert.Equal(t, "old.txt", res.DisplayName)
	assert.Equal(t, "text/plain", res.TypeName)
	assert.NotNil(t, res.Icon)
}

func TestFSNamespaceRejectsForeignLists(t *testing.T) {
	ns := &FSNamespace{}
	_, err := ns.Describe(NewIDList([]byte{0x14, 0x00, 0x1f}))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = ns.Parse("relative/path")
	assert.ErrorIs(t, err, ErrUnsupported)
}
