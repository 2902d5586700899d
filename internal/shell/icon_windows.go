//go:build windows

package shell

import (
	"bytes"
	"image"
	"image/png"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procDestroyIcon = user32.NewProc("DestroyIcon")
	procGetIconInfo = user32.NewProc("GetIconInfo")

	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procGetObjectW         = gdi32.NewProc("GetObjectW")
	procGetDIBits          = gdi32.NewProc("GetDIBits")
)

type iconInfo struct {
	fIcon    int32
	xHotspot uint32
	yHotspot uint32
	hbmMask  windows.Handle
	hbmColor windows.Handle
}

type bitmap struct {
	bmType       int32
	bmWidth      int32
	bmHeight     int32
	bmWidthBytes int32
	bmPlanes     uint16
	bmBitsPixel  uint16
	bmBits       uintptr
}

type bitmapInfoHeader struct {
	biSize          uint32
	biWidth         int32
	biHeight        int32
	biPlanes        uint16
	biBitCount      uint16
	biCompression   uint32
	biSizeImage     uint32
	biXPelsPerMeter int32
	biYPelsPerMeter int32
	biClrUsed       uint32
	biClrImportant  uint32
}

// takeIcon converts an HICON to PNG and destroys it. A zero handle or a
// failed conversion yields nil.
func takeIcon(h windows.Handle) *Icon {
	if h == 0 {
		return nil
	}
	defer procDestroyIcon.Call(uintptr(h))

	img := hiconImage(h)
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return &Icon{Name: "shell", PNG: buf.Bytes()}
}

func hiconImage(h windows.Handle) *image.NRGBA {
	var ii iconInfo
	if ok, _, _ := procGetIconInfo.Call(uintptr(h), uintptr(unsafe.Pointer(&ii))); ok == 0 {
		return nil
	}
	defer procDeleteObject.Call(uintptr(ii.hbmMask))
	if ii.hbmColor == 0 {
		return nil // monochrome icon
	}
	defer procDeleteObject.Call(uintptr(ii.hbmColor))

	var bm bitmap
	if n, _, _ := procGetObjectW.Call(uintptr(ii.hbmColor), unsafe.Sizeof(bm), uintptr(unsafe.Pointer(&bm))); n == 0 {
		return nil
	}
	w, hgt := int(bm.bmWidth), int(bm.bmHeight)
	if w <= 0 || hgt <= 0 {
		return nil
	}

	dc, _, _ := procCreateCompatibleDC.Call(0)
	if dc == 0 {
		return nil
	}
	defer procDeleteDC.Call(dc)

	hdr := bitmapInfoHeader{
		biSize:     uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		biWidth:    int32(w),
		biHeight:   -int32(hgt), // top-down rows
		biPlanes:   1,
		biBitCount: 32,
	}
	bgra := make([]byte, w*hgt*4)
	lines, _, _ := procGetDIBits.Call(dc, uintptr(ii.hbmColor), 0, uintptr(hgt),
		uintptr(unsafe.Pointer(&bgra[0])), uintptr(unsafe.Pointer(&hdr)), 0)
	if lines == 0 {
		return nil
	}
	return bgraToNRGBA(bgra, w, hgt)
}

// bgraToNRGBA swaps channels. Icons without an alpha channel come back with
// alpha all zero; those are made opaque.
func bgraToNRGBA(bgra []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	hasAlpha := false
	for i := 3; i < len(bgra); i += 4 {
		if bgra[i] != 0 {
			hasAlpha = true
			break
		}
	}
	for i := 0; i+3 < len(bgra); i += 4 {
		img.Pix[i+0] = bgra[i+2]
		img.Pix[i+1] = bgra[i+1]
		img.Pix[i+2] = bgra[i+0]
		if hasAlpha {
			img.Pix[i+3] = bgra[i+3]
		} else {
			img.Pix[i+3] = 0xff
		}
	}
	return img
}
