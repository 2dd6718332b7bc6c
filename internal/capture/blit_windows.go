//go:build windows

package capture

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	srcCopy      = 0x00CC0020
	captureBlt   = 0x40000000
	dibRGBColors = 0
	biRGB        = 0
	gdiError     = ^uintptr(0)
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procGetDesktopWindow       = user32.NewProc("GetDesktopWindow")
	procGetWindowDC            = user32.NewProc("GetWindowDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

// bitmapInfoHeader mirrors BITMAPINFOHEADER.
type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	_      [4]byte // one RGBQUAD, unused at 32 bpp
}

// gdiBlitAPI drives Win32 GDI against the desktop window.
type gdiBlitAPI struct {
	hwnd uintptr
}

func newPlatformBlitAPI() (blitAPI, error) {
	if err := procBitBlt.Find(); err != nil {
		return nil, fmt.Errorf("gdi32 unavailable: %w", err)
	}
	hwnd, _, _ := procGetDesktopWindow.Call()
	if hwnd == 0 {
		return nil, fmt.Errorf("GetDesktopWindow returned null")
	}
	return &gdiBlitAPI{hwnd: hwnd}, nil
}

func (g *gdiBlitAPI) WindowDC() (uintptr, error) {
	dc, _, callErr := procGetWindowDC.Call(g.hwnd)
	if dc == 0 {
		return 0, fmt.Errorf("GetWindowDC: %w", callErr)
	}
	return dc, nil
}

func (g *gdiBlitAPI) ReleaseWindowDC(dc uintptr) error {
	if r, _, callErr := procReleaseDC.Call(g.hwnd, dc); r == 0 {
		return fmt.Errorf("ReleaseDC: %w", callErr)
	}
	return nil
}

func (g *gdiBlitAPI) CreateCompatibleDC(dc uintptr) (uintptr, error) {
	mem, _, callErr := procCreateCompatibleDC.Call(dc)
	if mem == 0 {
		return 0, fmt.Errorf("CreateCompatibleDC: %w", callErr)
	}
	return mem, nil
}

func (g *gdiBlitAPI) DeleteDC(dc uintptr) error {
	if r, _, callErr := procDeleteDC.Call(dc); r == 0 {
		return fmt.Errorf("DeleteDC: %w", callErr)
	}
	return nil
}

func (g *gdiBlitAPI) CreateCompatibleBitmap(dc uintptr, w, h int) (uintptr, error) {
	bmp, _, callErr := procCreateCompatibleBitmap.Call(dc, uintptr(w), uintptr(h))
	if bmp == 0 {
		return 0, fmt.Errorf("CreateCompatibleBitmap: %w", callErr)
	}
	return bmp, nil
}

func (g *gdiBlitAPI) DeleteObject(obj uintptr) error {
	if r, _, callErr := procDeleteObject.Call(obj); r == 0 {
		return fmt.Errorf("DeleteObject: %w", callErr)
	}
	return nil
}

func (g *gdiBlitAPI) SelectObject(dc, obj uintptr) (uintptr, error) {
	prev, _, callErr := procSelectObject.Call(dc, obj)
	if prev == 0 || prev == gdiError {
		return 0, fmt.Errorf("SelectObject: %w", callErr)
	}
	return prev, nil
}

func (g *gdiBlitAPI) BitBlt(dst uintptr, w, h int, src uintptr, x, y int) error {
	ok, _, callErr := procBitBlt.Call(dst, 0, 0, uintptr(w), uintptr(h), src,
		uintptr(int32(x)), uintptr(int32(y)), srcCopy|captureBlt)
	if ok == 0 {
		return fmt.Errorf("BitBlt: %w", callErr)
	}
	return nil
}

func (g *gdiBlitAPI) BitmapBits(dc, bmp uintptr, w, h int, dst []byte) error {
	if len(dst) < w*h*BytesPerPixel {
		return fmt.Errorf("destination holds %d bytes, need %d", len(dst), w*h*BytesPerPixel)
	}

	var bi bitmapInfo
	bi.Header.BiSize = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.BiWidth = int32(w)
	bi.Header.BiHeight = -int32(h) // top-down rows
	bi.Header.BiPlanes = 1
	bi.Header.BiBitCount = 32
	bi.Header.BiCompression = biRGB

	lines, _, callErr := procGetDIBits.Call(dc, bmp, 0, uintptr(h),
		uintptr(unsafe.Pointer(&dst[0])), uintptr(unsafe.Pointer(&bi)), dibRGBColors)
	if lines == 0 || int(lines) != h {
		return fmt.Errorf("GetDIBits copied %d of %d lines: %w", lines, h, callErr)
	}

	// GDI leaves the alpha byte undefined.
	for i := 3; i < w*h*BytesPerPixel; i += BytesPerPixel {
		dst[i] = 0xFF
	}
	return nil
}

func (g *gdiBlitAPI) Close() error { return nil }
