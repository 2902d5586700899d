package decode

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/dropshelf/internal/shell"
	"go.klb.dev/dropshelf/internal/shelf"
)

// dropFiles builds a DROPFILES block.
func dropFiles(wide bool, names ...string) []byte {
	b := make([]byte, dropFilesHeaderSize)
	binary.LittleEndian.PutUint32(b[0:], dropFilesHeaderSize)
	if wide {
		binary.LittleEndian.PutUint32(b[16:], 1)
		for _, n := range names {
			b = append(b, EncodeUTF16(n)...)
		}
		return append(b, 0, 0)
	}
	for _, n := range names {
		b = append(b, n...)
		b = append(b, 0)
	}
	return append(b, 0)
}

// itemID builds one SHITEMID with the given payload.
func itemID(payload ...byte) []byte {
	b := make([]byte, 2, 2+len(payload))
	binary.LittleEndian.PutUint16(b, uint16(2+len(payload)))
	return append(b, payload...)
}

// cida builds a CIDA block from a parent list and child lists, each a
// sequence of SHITEMIDs without terminator.
func cida(parent []byte, children ...[]byte) []byte {
	lists := append([][]byte{parent}, children...)
	header := 4 + 4*len(lists)
	b := make([]byte, header)
	binary.LittleEndian.PutUint32(b, uint32(len(children)))
	for i, l := range lists {
		binary.LittleEndian.PutUint32(b[4+4*i:], uint32(len(b)))
		b = append(b, l...)
		b = append(b, 0, 0)
	}
	return b
}

type fakeResolver struct {
	names map[string]string // hex-ish key: string(list bytes)
}

func (f fakeResolver) ResolveIDList(list *shell.IDList) (string, shell.Resolution, error) {
	name, ok := f.names[string(list.Bytes())]
	if !ok {
		return "", shell.Resolution{}, errors.New("cannot name")
	}
	return name + "\x00\r\n", shell.Resolution{DisplayName: "Nice " + name}, nil
}

func TestParseDropFilesWide(t *testing.T) {
	names, err := ParseDropFiles(dropFiles(true, `C:\Users\me\a.txt`, `C:\Übersicht\b.pdf`))
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\Users\me\a.txt`, `C:\Übersicht\b.pdf`}, names)
}

func TestParseDropFilesANSI(t *testing.T) {
	// 0xE9 is é in Windows-1252.
	names, err := ParseDropFiles(dropFiles(false, "C:\\caf\xe9.txt", `D:\x`))
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\café.txt`, `D:\x`}, names)
}

func TestEncodeDropFiles(t *testing.T) {
	b := EncodeDropFiles(`C:\Users\me\report.pdf`, `D:\Ünïcode\photo.jpg`)
	assert.Equal(t, dropFiles(true, `C:\Users\me\report.pdf`, `D:\Ünïcode\photo.jpg`), b)

	names, err := ParseDropFiles(b)
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\Users\me\report.pdf`, `D:\Ünïcode\photo.jpg`}, names)
}

func TestParseDropFilesMalformed(t *testing.T) {
	_, err := ParseDropFiles([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)

	bad := dropFiles(true, "x")
	binary.LittleEndian.PutUint32(bad, 4000)
	_, err = ParseDropFiles(bad)
	assert.ErrorIs(t, err, ErrMalformed)

	unterminated := dropFiles(false, "ok")
	unterminated = append(unterminated[:len(unterminated)-1], 'z', 'z')
	names, err := ParseDropFiles(unterminated)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, []string{"ok"}, names, "entries before the damage survive")
}

func TestParseCIDA(t *testing.T) {
	parent := itemID(0x1f, 0x50)
	a := itemID('a')
	b := append(itemID('b'), itemID('c')...)

	lists, err := ParseCIDA(cida(parent, a, b))
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, append(append(append([]byte{}, parent...), a...), 0, 0), lists[0])
	assert.Equal(t, append(append(append([]byte{}, parent...), b...), 0, 0), lists[1])
}

func TestParseCIDASkipsBadChild(t *testing.T) {
	parent := itemID(1)
	good := itemID('g')
	blob := cida(parent, good, itemID('x'))
	// Point the second child past the end.
	binary.LittleEndian.PutUint32(blob[12:], uint32(len(blob)+10))

	lists, err := ParseCIDA(blob)
	assert.ErrorIs(t, err, ErrMalformed)
	require.Len(t, lists, 1)
}

func TestParseCIDAHeader(t *testing.T) {
	_, err := ParseCIDA([]byte{1})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseCIDA([]byte{5, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrMalformed)

	lists, err := ParseCIDA([]byte{0, 0, 0, 0})
	assert.NoError(t, err)
	assert.Empty(t, lists)
}

func TestParseURIList(t *testing.T) {
	body := "# comment\r\nfile:///home/me/a%20b.txt\r\nhttps://example.com/\r\nfile://localhost/etc/hosts\r\n"
	assert.Equal(t, []string{
		filepath.FromSlash("/home/me/a b.txt"),
		filepath.FromSlash("/etc/hosts"),
	}, ParseURIList([]byte(body)))
}

func TestFileURIPathWindowsDrive(t *testing.T) {
	p, ok := FileURIPath("file:///C:/Users/me/x.txt")
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("C:/Users/me/x.txt"), p)

	p, ok = FileURIPath("file://server/share/doc.txt")
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("//server/share/doc.txt"), p)
}

func TestDecodeFilesWinOverText(t *testing.T) {
	d := New(nil, nil)
	got := d.Decode(MapPayload{
		FormatHDROP: dropFiles(true, `C:\a.txt `, `C:\b.txt`+"\r\n", `C:\a.txt`),
		FormatText:  []byte("some text"),
	}, SourceClipboard)

	assert.Equal(t, CategoryFiles, got.Category)
	assert.Equal(t, []Entry{
		{Kind: shelf.KindFile, Content: `C:\a.txt`},
		{Kind: shelf.KindFile, Content: `C:\b.txt`},
	}, got.Entries)
	assert.Empty(t, d.LastText(), "text was never considered")
}

func TestDecodeURIListWithoutFilesFallsThrough(t *testing.T) {
	d := New(nil, nil)
	got := d.Decode(MapPayload{
		FormatURIList: []byte("https://go.dev/\r\n"),
		FormatText:    []byte("https://go.dev/"),
	}, SourceClipboard)

	assert.Equal(t, CategoryText, got.Category)
	assert.Equal(t, []Entry{{Kind: shelf.KindURL, Content: "https://go.dev/"}}, got.Entries)
}

func TestDecodeIDList(t *testing.T) {
	parent := itemID(0x1f)
	bin := itemID('R')
	pc := itemID('P')
	broken := itemID('?')
	abs := func(child []byte) string {
		return string(append(append(append([]byte{}, parent...), child...), 0, 0))
	}

	d := New(fakeResolver{names: map[string]string{
		abs(bin): "::{645FF040-5081-101B-9F08-00AA002F954E}",
		abs(pc):  "::{20D04FE0-3AEA-1069-A2D8-08002B30309D}",
	}}, nil)

	got := d.Decode(MapPayload{
		FormatIDList: cida(parent, bin, broken, pc),
		FormatText:   []byte("ignored"),
	}, SourceDrop)

	require.Equal(t, CategoryIDList, got.Category)
	assert.Equal(t, []Entry{
		{Kind: shelf.KindFile, Content: "::{645FF040-5081-101B-9F08-00AA002F954E}", DisplayName: "Nice ::{645FF040-5081-101B-9F08-00AA002F954E}"},
		{Kind: shelf.KindFile, Content: "::{20D04FE0-3AEA-1069-A2D8-08002B30309D}", DisplayName: "Nice ::{20D04FE0-3AEA-1069-A2D8-08002B30309D}"},
	}, got.Entries)
}

func TestDecodeIDListNothingNamedFallsThrough(t *testing.T) {
	d := New(fakeResolver{}, nil)
	got := d.Decode(MapPayload{
		FormatIDList: cida(itemID(1), itemID(2)),
		FormatText:   []byte("plain"),
	}, SourceClipboard)
	assert.Equal(t, CategoryText, got.Category)
}

func TestDecodeTextClassification(t *testing.T) {
	for in, want := range map[string]shelf.Kind{
		"https://example.com": shelf.KindURL,
		"HTTP://EXAMPLE.COM":  shelf.KindURL,
		"www.example.com":     shelf.KindURL,
		"ftp://example.com":   shelf.KindText,
		"see www.example.com": shelf.KindText,
	} {
		assert.Equal(t, want, Classify(in), in)
	}
}

func TestDecodeSuppressesRepeatedClipboardText(t *testing.T) {
	d := New(nil, nil)
	p := MapPayload{FormatText: []byte("  hello \n")}

	first := d.Decode(p, SourceClipboard)
	require.Equal(t, CategoryText, first.Category)
	assert.Equal(t, "hello", first.Entries[0].Content)

	again := d.Decode(p, SourceClipboard)
	assert.Equal(t, CategoryNone, again.Category)

	dropped := d.Decode(p, SourceDrop)
	assert.Equal(t, CategoryText, dropped.Category, "drops are never suppressed")

	other := d.Decode(MapPayload{FormatText: []byte("world")}, SourceClipboard)
	assert.Equal(t, CategoryText, other.Category)
	assert.Equal(t, CategoryText, d.Decode(p, SourceClipboard).Category)
}

func TestDecodeBlankText(t *testing.T) {
	d := New(nil, nil)
	got := d.Decode(MapPayload{FormatText: []byte(" \t\r\n")}, SourceClipboard)
	assert.Equal(t, CategoryNone, got.Category)
}

func TestDecodeUnicodeText(t *testing.T) {
	d := New(nil, nil)
	got := d.Decode(MapPayload{FormatUnicodeText: EncodeUTF16("grüße")}, SourceClipboard)
	require.Equal(t, CategoryText, got.Category)
	assert.Equal(t, "grüße", got.Entries[0].Content)
}

func TestDecodeEmptyPayload(t *testing.T) {
	assert.Equal(t, Decoded{Category: CategoryNone}, New(nil, nil).Decode(MapPayload{}, SourceClipboard))
}
