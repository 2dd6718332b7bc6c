package capture

import (
	"fmt"
	"image"
	"time"
)

// BytesPerPixel is the size of one BGRA pixel.
const BytesPerPixel = 4

// Frame is one captured image of the region. Pix holds Height rows of
// Width BGRA pixels with no row padding, so len(Pix) == Width*Height*4.
// Frames handed out by a backend are read-only.
type Frame struct {
	Width      int
	Height     int
	Pix        []byte
	Sequence   uint64
	CapturedAt time.Time
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Validate checks the buffer length against the dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if want := f.Width * f.Height * BytesPerPixel; len(f.Pix) != want {
		return fmt.Errorf("frame buffer is %d bytes, want %d for %dx%d BGRA", len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

// Clone returns a deep copy that the caller may modify.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = append([]byte(nil), f.Pix...)
	return &c
}

// RGBA converts the frame to an *image.RGBA with opaque alpha.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i+3 < len(f.Pix) && i+3 < len(img.Pix); i += BytesPerPixel {
		img.Pix[i+0] = f.Pix[i+2]
		img.Pix[i+1] = f.Pix[i+1]
		img.Pix[i+2] = f.Pix[i+0]
		img.Pix[i+3] = 0xFF
	}
	return img
}

// frameFromRGBA converts a grabbed RGBA image to a tightly packed BGRA frame
// of exactly width x height, honouring the source stride.
func frameFromRGBA(img *image.RGBA, width, height int) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("grabber returned no image")
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("grabber returned %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}

	f := NewFrame(width, height)
	rowBytes := width * BytesPerPixel
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		dst := f.Pix[y*rowBytes : (y+1)*rowBytes]
		for i := 0; i < rowBytes; i += BytesPerPixel {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = 0xFF
		}
	}
	return f, nil
}
