//go:build windows

package window

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const swRestore = 9

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetClassNameW       = user32.NewProc("GetClassNameW")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procIsWindow            = user32.NewProc("IsWindow")
	procIsIconic            = user32.NewProc("IsIconic")
	procShowWindow          = user32.NewProc("ShowWindow")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadPID  = user32.NewProc("GetWindowThreadProcessId")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// Win32Source implements Source with user32 window functions.
type Win32Source struct{}

// NewSource returns the user32 window source.
func NewSource() (Source, error) {
	if err := procEnumWindows.Find(); err != nil {
		return nil, fmt.Errorf("user32 unavailable: %w", err)
	}
	return &Win32Source{}, nil
}

func (s *Win32Source) Name() string { return "win32" }

func (s *Win32Source) Close() error { return nil }

// ListWindows returns visible top-level windows in EnumWindows order.
func (s *Win32Source) ListWindows() ([]Info, error) {
	var out []Info
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		if vis, _, _ := procIsWindowVisible.Call(hwnd); vis == 0 {
			return 1 // continue
		}
		info, err := s.windowInfo(hwnd)
		if err != nil {
			return 1
		}
		out = append(out, info)
		return 1
	})

	if r, _, err := procEnumWindows.Call(cb, 0); r == 0 {
		if err != nil && err != syscall.Errno(0) {
			return nil, fmt.Errorf("EnumWindows failed: %w", err)
		}
		return nil, fmt.Errorf("EnumWindows failed")
	}
	return out, nil
}

// Activate restores a minimised window and makes it the foreground window.
func (s *Win32Source) Activate(win Info) error {
	if ok, _, _ := procIsWindow.Call(win.Handle); ok == 0 {
		return ErrWindowGone
	}
	if iconic, _, _ := procIsIconic.Call(win.Handle); iconic != 0 {
		_, _, _ = procShowWindow.Call(win.Handle, swRestore)
	}

	r, _, err := procSetForegroundWindow.Call(win.Handle)
	if r == 0 {
		return fmt.Errorf("%w: SetForegroundWindow: %v", ErrNotActivated, err)
	}
	if fg, _, _ := procGetForegroundWindow.Call(); fg != win.Handle {
		return fmt.Errorf("%w: foreground is 0x%x", ErrNotActivated, fg)
	}
	return nil
}

func (s *Win32Source) Refresh(win Info) (Info, error) {
	if ok, _, _ := procIsWindow.Call(win.Handle); ok == 0 {
		return win, ErrWindowGone
	}
	return s.windowInfo(win.Handle)
}

func (s *Win32Source) windowInfo(hwnd uintptr) (Info, error) {
	var r rect
	if ok, _, err := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ok == 0 {
		return Info{}, fmt.Errorf("GetWindowRect: %w", err)
	}

	var pid uint32
	_, _, _ = procGetWindowThreadPID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	return Info{
		Handle: hwnd,
		Title:  strings.TrimSpace(windowString(procGetWindowTextW, hwnd)),
		Class:  windowString(procGetClassNameW, hwnd),
		PID:    int(pid),
		Box:    boxFromRect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)),
	}, nil
}

func windowString(proc *windows.LazyProc, hwnd uintptr) string {
	const maxChars = 256
	buf := make([]uint16, maxChars)
	n, _, _ := proc.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
