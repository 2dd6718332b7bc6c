// Package window lists top-level windows, lets the user pick one and brings
// it to the foreground before capture starts.
package window

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/FocusTracker/internal/display"
)

var (
	// ErrNotActivated means the window manager did not hand focus to the
	// window. It is worth retrying, typically after the user switches to it.
	ErrNotActivated = errors.New("window was not activated")
	// ErrWindowGone means the window no longer exists.
	ErrWindowGone = errors.New("window no longer exists")
	// ErrActivationFailed is returned once activation gives up.
	ErrActivationFailed = errors.New("window activation failed")
	// ErrInvalidSelection is returned for input that does not name a window.
	ErrInvalidSelection = errors.New("invalid window selection")
	// ErrUnsupportedPlatform is returned where no window source exists.
	ErrUnsupportedPlatform = errors.New("window source not supported on this platform")
)

// Info describes one top-level window.
type Info struct {
	Handle uintptr `json:"handle"`
	Title  string  `json:"title"`
	Class  string  `json:"class,omitempty"`
	PID    int     `json:"pid,omitempty"`
	// Box is the window rectangle in virtual-screen coordinates.
	Box display.WindowBox `json:"box"`
}

func (i Info) String() string {
	return fmt.Sprintf("%q (0x%x) at (%d, %d, %d, %d)", i.Title, i.Handle, i.Box.Left, i.Box.Top, i.Box.Right, i.Box.Bottom)
}

// Source enumerates and activates windows on the running desktop.
type Source interface {
	// Name returns the source name (e.g., "x11", "win32")
	Name() string

	// ListWindows returns top-level windows in stacking or enumeration order.
	ListWindows() ([]Info, error)

	// Activate raises win and gives it input focus.
	Activate(win Info) error

	// Refresh re-reads the geometry of win.
	Refresh(win Info) (Info, error)

	// Close releases the display connection.
	Close() error
}

func boxFromRect(left, top, right, bottom int) display.WindowBox {
	return display.WindowBox{
		Left:   left,
		Top:    top,
		Right:  right,
		Bottom: bottom,
		Height: bottom - top,
	}
}
