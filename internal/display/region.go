package display

import (
	"fmt"
	"image"
)

// ScreenBounds describes the union of all physical displays in virtual-screen
// coordinates. The origin may be negative when a monitor sits left of or
// above the primary one.
type ScreenBounds struct {
	OriginX int `json:"origin_x"`
	OriginY int `json:"origin_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// Rect returns the bounds as an image.Rectangle.
func (b ScreenBounds) Rect() image.Rectangle {
	return image.Rect(b.OriginX, b.OriginY, b.OriginX+b.Width, b.OriginY+b.Height)
}

func (b ScreenBounds) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.OriginX, b.OriginY, b.Width, b.Height)
}

// WindowBox is the bounding box of the window the capture region is centred on.
type WindowBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Height int `json:"height"`
}

// Region is the fixed capture rectangle in virtual-screen coordinates.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the region width in pixels
func (r Region) Width() int { return r.Right - r.Left }

// Height returns the region height in pixels
func (r Region) Height() int { return r.Bottom - r.Top }

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

func (r Region) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.Left, r.Top, r.Right, r.Bottom)
}

// PlanRegion computes a width x height capture rectangle centred on the
// window and clamped into bounds. The opposite edges are always derived from
// the clamped origin, so the result has exactly the requested size even when
// the window is smaller than the region or partly off-screen.
func PlanRegion(win WindowBox, width, height int, bounds ScreenBounds) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, &RegionConfigError{Width: width, Height: height, Bounds: bounds, Reason: "capture size must be positive"}
	}
	if width > bounds.Width || height > bounds.Height {
		return Region{}, &RegionConfigError{Width: width, Height: height, Bounds: bounds, Reason: "capture size exceeds screen bounds"}
	}

	left := floorDiv(win.Left+win.Right, 2) - width/2
	top := win.Top + floorDiv(win.Height-height, 2)

	left = clamp(left, bounds.OriginX, bounds.OriginX+bounds.Width-width)
	top = clamp(top, bounds.OriginY, bounds.OriginY+bounds.Height-height)

	return Region{
		Left:   left,
		Top:    top,
		Right:  left + width,
		Bottom: top + height,
	}, nil
}

// Contains reports whether r lies fully inside the bounds.
func (b ScreenBounds) Contains(r Region) bool {
	return r.Left >= b.OriginX && r.Top >= b.OriginY &&
		r.Right <= b.OriginX+b.Width && r.Bottom <= b.OriginY+b.Height
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// floorDiv rounds toward negative infinity so windows on monitors left of the
// primary display centre the same way as ones on the right.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
