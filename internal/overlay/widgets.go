package overlay

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	targetColor    = color.RGBA{255, 64, 64, 255}
	candidateColor = color.RGBA{64, 255, 64, 255}
	aimColor       = color.RGBA{255, 220, 0, 255}
	labelBg        = color.RGBA{0, 0, 0, 255}
	white          = color.RGBA{255, 255, 255, 255}
)

// BoxWidget outlines every detection and labels it with its confidence.
// The selected target is drawn in red, the rest in green.
type BoxWidget struct {
	*BaseWidget
}

func NewBoxWidget() *BoxWidget {
	return &BoxWidget{BaseWidget: NewBaseWidget("boxes", 1)}
}

func (w *BoxWidget) Type() string { return "boxes" }

func (w *BoxWidget) Render(img *image.RGBA, s Scene) error {
	b := img.Bounds()
	fw, fh := float64(b.Dx()), float64(b.Dy())

	for i, d := range s.Detections {
		r := image.Rect(
			int((d.CenterX-d.Width/2)*fw), int((d.CenterY-d.Height/2)*fh),
			int((d.CenterX+d.Width/2)*fw), int((d.CenterY+d.Height/2)*fh),
		).Add(b.Min)

		c := candidateColor
		if s.Result.HasTarget() && i == s.Result.Index {
			c = targetColor
		}
		DrawOutline(img, r, 2, c, w.GetOpacity())
		DrawLabel(img, image.Pt(r.Min.X, r.Min.Y), fmt.Sprintf("%.0f%%", d.Confidence*100), c, w.GetOpacity())
	}
	return nil
}

// CrosshairWidget marks the frame centre and, when there is a target, the
// aim point with a line from the centre.
type CrosshairWidget struct {
	*BaseWidget
	size int
}

func NewCrosshairWidget() *CrosshairWidget {
	return &CrosshairWidget{BaseWidget: NewBaseWidget("crosshair", 0.8), size: 6}
}

func (w *CrosshairWidget) Type() string { return "crosshair" }

func (w *CrosshairWidget) Render(img *image.RGBA, s Scene) error {
	b := img.Bounds()
	c := image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	DrawLine(img, c.Sub(image.Pt(w.size, 0)), c.Add(image.Pt(w.size, 0)), white, w.GetOpacity())
	DrawLine(img, c.Sub(image.Pt(0, w.size)), c.Add(image.Pt(0, w.size)), white, w.GetOpacity())

	if !s.Result.HasTarget() {
		return nil
	}
	aim := image.Pt(int(s.Result.Aim.X), int(s.Result.Aim.Y)).Add(b.Min)
	lineColor := aimColor
	if !s.Gated {
		lineColor = white
	}
	DrawLine(img, c, aim, lineColor, w.GetOpacity())
	DrawRectangle(img, image.Rect(aim.X-2, aim.Y-2, aim.X+3, aim.Y+3), aimColor, 1)
	return nil
}

// StatusWidget prints a one-line status in the top-left corner.
type StatusWidget struct {
	*BaseWidget
}

func NewStatusWidget() *StatusWidget {
	return &StatusWidget{BaseWidget: NewBaseWidget("status", 0.9)}
}

func (w *StatusWidget) Type() string { return "status" }

func (w *StatusWidget) Render(img *image.RGBA, s Scene) error {
	gate := "off"
	if s.Gated {
		gate = "on"
	}
	text := fmt.Sprintf("cps %.0f  dets %d  gate %s", s.CPS, len(s.Detections), gate)
	b := img.Bounds()
	DrawLabel(img, image.Pt(b.Min.X+2, b.Min.Y+labelHeight+2), text, white, w.GetOpacity())
	return nil
}

const labelHeight = 13 // basicfont.Face7x13

// DrawLabel writes text on a dark background whose bottom-left corner is at
// p.
func DrawLabel(img *image.RGBA, p image.Point, text string, c color.Color, opacity float64) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()

	tmp := image.NewRGBA(image.Rect(0, 0, width+2, labelHeight))
	DrawRectangle(tmp, tmp.Bounds(), labelBg, 1)
	d.Dst = tmp
	d.Src = image.NewUniform(c)
	d.Dot = fixed.Point26_6{X: fixed.I(1), Y: fixed.I(labelHeight - face.Descent)}
	d.DrawString(text)

	BlendImage(img, tmp, p.X, p.Y-labelHeight, opacity)
}
