//go:build !windows && !linux

package capture

func newPlatformBlitAPI() (blitAPI, error) {
	return nil, ErrUnsupportedPlatform
}
