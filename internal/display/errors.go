package display

import (
	"errors"
	"fmt"
)

// ErrRegionConfig is matched by every *RegionConfigError.
var ErrRegionConfig = errors.New("invalid capture region configuration")

// RegionConfigError reports a capture size that cannot fit the screen.
type RegionConfigError struct {
	Width  int
	Height int
	Bounds ScreenBounds
	Reason string
}

func (e *RegionConfigError) Error() string {
	return fmt.Sprintf("%s: requested %dx%d, screen bounds %s", e.Reason, e.Width, e.Height, e.Bounds)
}

func (e *RegionConfigError) Is(target error) bool {
	return target == ErrRegionConfig
}
