//go:build !linux && !windows

package input

// NewKeyState reports that keyboard polling is unavailable.
func NewKeyState() (KeyState, error) {
	return nil, ErrUnsupportedPlatform
}

// CanToggle is always false without keyboard polling.
func CanToggle(Key) bool { return false }
