//go:build windows

package input

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
	procGetKeyState      = user32.NewProc("GetKeyState")
)

type win32Keys struct{}

// NewKeyState returns a KeyState backed by user32.
func NewKeyState() (KeyState, error) {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return nil, fmt.Errorf("user32 unavailable: %w", err)
	}
	return win32Keys{}, nil
}

// Pressed also counts a press that happened since the previous poll.
func (win32Keys) Pressed(k Key) bool {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(k.vk))
	return uint16(r)&0x8001 != 0
}

// CanToggle reports whether Toggled can observe k. GetKeyState keeps a
// toggle bit for every virtual key.
func CanToggle(k Key) bool { return !k.IsZero() }

func (win32Keys) Toggled(k Key) bool {
	r, _, _ := procGetKeyState.Call(uintptr(k.vk))
	return uint16(r)&0x0001 != 0
}

func (win32Keys) Close() error { return nil }
