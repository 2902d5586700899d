//go:build windows

package shell

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	shell32                 = windows.NewLazySystemDLL("shell32.dll")
	procSHParseDisplayName  = shell32.NewProc("SHParseDisplayName")
	procSHGetFileInfoW      = shell32.NewProc("SHGetFileInfoW")
	procSHGetNameFromIDList = shell32.NewProc("SHGetNameFromIDList")
)

const (
	shgfiIcon              = 0x000000100
	shgfiDisplayName       = 0x000000200
	shgfiTypeName          = 0x000000400
	shgfiUseFileAttributes = 0x000000010
	shgfiPIDL              = 0x000000008
	shgfiLargeIcon         = 0x000000000

	fileAttributeNormal = 0x80

	sFalse          = 0x00000001
	rpcEChangedMode = 0x80010106

	sigdnNormalDisplay          = 0x00000000
	sigdnDesktopAbsoluteParsing = 0x80028000
)

type shFileInfo struct {
	hIcon         windows.Handle
	iIcon         int32
	dwAttributes  uint32
	szDisplayName [windows.MAX_PATH]uint16
	szTypeName    [80]uint16
}

func platform() (Namespace, Attributes) {
	w := &WinNamespace{}
	return w, w
}

// WinNamespace talks to the Windows shell. Every call runs on a locked OS
// thread with COM initialised.
type WinNamespace struct{}

// Parse turns a path or ::{CLSID} string into an absolute PIDL.
func (WinNamespace) Parse(id string) (*IDList, error) {
	name, err := windows.UTF16PtrFromString(id)
	if err != nil {
		return nil, err
	}
	var pidl uintptr
	err = withCOM(func() error {
		hr, _, _ := procSHParseDisplayName.Call(
			uintptr(unsafe.Pointer(name)), 0, uintptr(unsafe.Pointer(&pidl)), 0, 0)
		if int32(hr) < 0 {
			return fmt.Errorf("SHParseDisplayName %q: %w", id, windows.Errno(hr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newHandle(pidl, id, func(h uintptr) {
		windows.CoTaskMemFree(unsafe.Pointer(h))
	}), nil
}

// Describe reads the display name, parsing name, type and icon of a list.
func (WinNamespace) Describe(list *IDList) (Description, error) {
	var d Description
	err := withCOM(func() error {
		pidl, keep := pidlPointer(list)
		if pidl == 0 {
			return ErrUnsupported
		}
		defer runtime.KeepAlive(keep)

		var info shFileInfo
		ret, _, _ := procSHGetFileInfoW.Call(
			pidl, 0, uintptr(unsafe.Pointer(&info)), unsafe.Sizeof(info),
			shgfiPIDL|shgfiDisplayName|shgfiTypeName|shgfiIcon|shgfiLargeIcon)
		if ret == 0 {
			return fmt.Errorf("SHGetFileInfoW(PIDL) failed")
		}
		d.DisplayName = windows.UTF16ToString(info.szDisplayName[:])
		d.TypeName = windows.UTF16ToString(info.szTypeName[:])
		d.Icon = takeIcon(info.hIcon)

		if s, err := nameFromIDList(pidl, sigdnDesktopAbsoluteParsing); err == nil {
			d.ParsingName = s
		}
		if d.DisplayName == "" {
			if s, err := nameFromIDList(pidl, sigdnNormalDisplay); err == nil {
				d.DisplayName = s
			}
		}
		return nil
	})
	return d, err
}

// Attributes asks the shell about path as an ordinary file, whether or not
// it exists.
func (WinNamespace) Attributes(path string) (Description, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Description{}, err
	}
	var d Description
	err = withCOM(func() error {
		var info shFileInfo
		ret, _, _ := procSHGetFileInfoW.Call(
			uintptr(unsafe.Pointer(p)), fileAttributeNormal,
			uintptr(unsafe.Pointer(&info)), unsafe.Sizeof(info),
			shgfiUseFileAttributes|shgfiDisplayName|shgfiTypeName|shgfiIcon|shgfiLargeIcon)
		if ret == 0 {
			return fmt.Errorf("SHGetFileInfoW(%q) failed", path)
		}
		d = Description{
			DisplayName: windows.UTF16ToString(info.szDisplayName[:]),
			ParsingName: path,
			TypeName:    windows.UTF16ToString(info.szTypeName[:]),
			Icon:        takeIcon(info.hIcon),
		}
		return nil
	})
	return d, err
}

// pidlPointer returns a pointer usable as PCIDLIST_ABSOLUTE and the value
// that must stay alive while it is in use.
func pidlPointer(list *IDList) (uintptr, any) {
	if list == nil {
		return 0, nil
	}
	if list.handle != 0 {
		return list.handle, list
	}
	if len(list.data) < 2 {
		return 0, nil
	}
	return uintptr(unsafe.Pointer(&list.data[0])), list.data
}

func nameFromIDList(pidl uintptr, sigdn uint32) (string, error) {
	var out *uint16
	hr, _, _ := procSHGetNameFromIDList.Call(pidl, uintptr(sigdn), uintptr(unsafe.Pointer(&out)))
	if int32(hr) < 0 {
		return "", windows.Errno(hr)
	}
	defer windows.CoTaskMemFree(unsafe.Pointer(out))
	return windows.UTF16PtrToString(out), nil
}

func withCOM(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	switch err := windows.CoInitializeEx(0, windows.COINIT_APARTMENTTHREADED); err {
	case nil, windows.Errno(sFalse):
		defer windows.CoUninitialize()
	case windows.Errno(rpcEChangedMode):
		// Someone else owns this thread's apartment; it is usable as is.
	default:
		return fmt.Errorf("CoInitializeEx: %w", err)
	}
	return fn()
}
