//go:build windows

package clip

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"golang.design/x/clipboard"
	"golang.org/x/sys/windows"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/shelf"
)

const windowsPollInterval = 100 * time.Millisecond

const (
	cfUnicodeText = 13
	cfHDROP       = 15

	gmemMoveable = 0x0002
)

var (
	user32                         = windows.NewLazySystemDLL("user32.dll")
	procGetClipboardSequenceNumber = user32.NewProc("GetClipboardSequenceNumber")
	procOpenClipboard              = user32.NewProc("OpenClipboard")
	procCloseClipboard             = user32.NewProc("CloseClipboard")
	procIsClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")
	procGetClipboardData           = user32.NewProc("GetClipboardData")
	procSetClipboardData           = user32.NewProc("SetClipboardData")
	procEmptyClipboard             = user32.NewProc("EmptyClipboard")
	procRegisterClipboardFormatW   = user32.NewProc("RegisterClipboardFormatW")

	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procGlobalAlloc  = kernel32.NewProc("GlobalAlloc")
	procGlobalFree   = kernel32.NewProc("GlobalFree")
	procGlobalLock   = kernel32.NewProc("GlobalLock")
	procGlobalUnlock = kernel32.NewProc("GlobalUnlock")
	procGlobalSize   = kernel32.NewProc("GlobalSize")
)

type windowsBackend struct {
	cfIDList uintptr
	lastSeq  uintptr
	watchCh  chan struct{}
	done     chan struct{}
}

// New returns the Windows clipboard backend. Changes are detected by
// polling GetClipboardSequenceNumber, which needs no window or message pump.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	name, _ := windows.UTF16PtrFromString(string(decode.FormatIDList))
	cf, _, _ := procRegisterClipboardFormatW.Call(uintptr(unsafe.Pointer(name)))
	seq, _, _ := procGetClipboardSequenceNumber.Call()
	b := &windowsBackend{
		cfIDList: cf,
		lastSeq:  seq,
		watchCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) poll() {
	t := time.NewTicker(windowsPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			seq, _, _ := procGetClipboardSequenceNumber.Call()
			if seq != b.lastSeq {
				b.lastSeq = seq
				notify(b.watchCh)
			}
		}
	}
}

func (b *windowsBackend) Read() (decode.Payload, error) {
	// The clipboard is opened per thread; CloseClipboard must run on the
	// thread that opened it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := openClipboard(); err != nil {
		return nil, err
	}
	defer procCloseClipboard.Call()

	p := decode.MapPayload{}
	formats := []struct {
		id     uintptr
		format decode.Format
	}{
		{cfHDROP, decode.FormatHDROP},
		{b.cfIDList, decode.FormatIDList},
		{cfUnicodeText, decode.FormatUnicodeText},
	}
	for _, f := range formats {
		if f.id == 0 {
			continue
		}
		if ok, _, _ := procIsClipboardFormatAvailable.Call(f.id); ok == 0 {
			continue
		}
		data, err := globalBytes(f.id)
		if err != nil {
			slog.Debug("clipboard format unreadable", "format", f.format, "err", err)
			continue
		}
		p[f.format] = data
	}
	if len(p) == 0 {
		return nil, nil
	}
	return p, nil
}

// openClipboard retries briefly; another process may hold the clipboard
// right after it announced a change.
func openClipboard() error {
	var err error
	for i := 0; i < 10; i++ {
		var ok uintptr
		ok, _, err = procOpenClipboard.Call(0)
		if ok != 0 {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("open clipboard: %w", err)
}

func globalBytes(format uintptr) ([]byte, error) {
	h, _, err := procGetClipboardData.Call(format)
	if h == 0 {
		return nil, fmt.Errorf("GetClipboardData: %w", err)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fmt.Errorf("GlobalLock: %w", err)
	}
	defer procGlobalUnlock.Call(h)
	size, _, _ := procGlobalSize.Call(h)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return out, nil
}

// Write offers files as CF_HDROP plus their path as text. Shell
// identifiers and everything else go through x/clipboard as text.
func (b *windowsBackend) Write(kind shelf.Kind, content string) error {
	if kind != shelf.KindFile || strings.HasPrefix(content, "::") {
		clipboard.Write(clipboard.FmtText, []byte(content))
		return nil
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := openClipboard(); err != nil {
		return err
	}
	defer procCloseClipboard.Call()

	if ok, _, err := procEmptyClipboard.Call(); ok == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}
	if err := setGlobal(cfHDROP, decode.EncodeDropFiles(content)); err != nil {
		return err
	}
	return setGlobal(cfUnicodeText, decode.EncodeUTF16(content))
}

// setGlobal copies data into a movable global block and hands it to the
// clipboard, which owns it from then on.
func setGlobal(format uintptr, data []byte) error {
	h, _, err := procGlobalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc: %w", err)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("GlobalLock: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(data)), data)
	procGlobalUnlock.Call(h)

	if r, _, err := procSetClipboardData.Call(format, h); r == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("SetClipboardData: %w", err)
	}
	return nil
}

func (b *windowsBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *windowsBackend) Close()                { close(b.done) }
