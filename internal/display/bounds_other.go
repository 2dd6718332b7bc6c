//go:build !windows

package display

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// QueryBounds returns the union of all active display rectangles.
func QueryBounds() (ScreenBounds, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return ScreenBounds{}, fmt.Errorf("no active displays found")
	}
	union := image.Rectangle{}
	for i := 0; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return boundsFromRect(union), nil
}

func boundsFromRect(r image.Rectangle) ScreenBounds {
	return ScreenBounds{
		OriginX: r.Min.X,
		OriginY: r.Min.Y,
		Width:   r.Dx(),
		Height:  r.Dy(),
	}
}
