// Package overlay draws tracking state on top of captured frames for the
// preview stream.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
)

// Scene is everything a widget may draw for one frame.
type Scene struct {
	Detections []tracker.DetectionBox
	Result     tracker.Result
	Gated      bool
	CPS        float64
}

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget onto img for the given scene
	Render(img *image.RGBA, s Scene) error

	IsEnabled() bool
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true}
	w.SetOpacity(opacity)
	return w
}

func (w *BaseWidget) ID() string { return w.id }

func (w *BaseWidget) IsEnabled() bool { return w.enabled }

func (w *BaseWidget) SetEnabled(enabled bool) { w.enabled = enabled }

// GetOpacity returns the opacity widgets blend with.
func (w *BaseWidget) GetOpacity() float64 { return w.opacity }

// SetOpacity sets the widget's opacity, clamped to [0, 1].
func (w *BaseWidget) SetOpacity(opacity float64) {
	w.opacity = max(0, min(opacity, 1))
}

// BlendImage blends src onto dst at (x, y) with the given opacity. Pixels
// outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}
		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}
			blendPixel(dst, dx, dy, src.At(sx, sy), opacity)
		}
	}
}

// blendPixel composites c over the destination pixel. The preview is always
// opaque, so only the source alpha matters.
func blendPixel(dst *image.RGBA, x, y int, c color.Color, opacity float64) {
	sr, sg, sb, sa := c.RGBA()
	alpha := float64(sa) * opacity / 0xffff
	if alpha <= 0 {
		return
	}
	d := dst.RGBAAt(x, y)
	mix := func(s uint32, d uint8) uint8 {
		return uint8(float64(s>>8)*alpha + float64(d)*(1-alpha))
	}
	dst.SetRGBA(x, y, color.RGBA{R: mix(sr, d.R), G: mix(sg, d.G), B: mix(sb, d.B), A: 0xff})
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, r image.Rectangle, c color.Color, opacity float64) {
	tmp := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(tmp, tmp.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	BlendImage(dst, tmp, r.Min.X, r.Min.Y, opacity)
}

// DrawOutline draws the border of r, thickness pixels wide, inside r.
func DrawOutline(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color, opacity float64) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	t := min(thickness, r.Dx(), r.Dy())
	DrawRectangle(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c, opacity)
	DrawRectangle(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c, opacity)
	DrawRectangle(dst, image.Rect(r.Min.X, r.Min.Y+t, r.Min.X+t, r.Max.Y-t), c, opacity)
	DrawRectangle(dst, image.Rect(r.Max.X-t, r.Min.Y+t, r.Max.X, r.Max.Y-t), c, opacity)
}

// DrawLine draws a one pixel line from a to b.
func DrawLine(dst *image.RGBA, a, b image.Point, c color.Color, opacity float64) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	e := dx + dy
	bounds := dst.Bounds()
	for {
		if a.In(bounds) {
			blendPixel(dst, a.X, a.Y, c, opacity)
		}
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
