package detect

import (
	"github.com/bryanchriswhite/FocusTracker/internal/capture"
)

// Mask blanks a width x height block anchored at the bottom-left corner of
// the frame, typically where the player's own weapon model sits.
type Mask struct {
	Enabled bool
	Width   int
	Height  int
}

// Apply zeroes the masked pixels in place. The block is clipped to the
// frame.
func (m Mask) Apply(f *capture.Frame) {
	if !m.Enabled || m.Width <= 0 || m.Height <= 0 || f == nil {
		return
	}
	w := min(m.Width, f.Width)
	h := min(m.Height, f.Height)
	stride := f.Width * capture.BytesPerPixel

	for y := f.Height - h; y < f.Height; y++ {
		row := f.Pix[y*stride : y*stride+w*capture.BytesPerPixel]
		clear(row)
	}
}
