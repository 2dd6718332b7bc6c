//go:build !linux && !windows

package window

// NewSource reports that no window source exists for this platform.
func NewSource() (Source, error) {
	return nil, ErrUnsupportedPlatform
}
