package capture

import (
	"image"

	kscreenshot "github.com/kbinani/screenshot"
	vscreenshot "github.com/vova616/screenshot"

	"github.com/bryanchriswhite/FocusTracker/internal/display"
)

// Options tunes the default backend set.
type Options struct {
	// RingSize bounds the hardware-accelerated frame ring.
	RingSize int
	// TargetFPS caps the producer rate of duplication backends; 0 means
	// grab as fast as possible.
	TargetFPS int
}

// NewHardwareAccelerated builds the ring-buffered duplication backend.
func NewHardwareAccelerated(region display.Region, opts Options) Backend {
	return newDuplicationBackend("duplication-ring", HardwareAccelerated, region,
		grabKbinani, newRingBuffer(opts.RingSize), opts.TargetFPS)
}

// NewSoftwareFallback builds the single-buffered duplication backend.
func NewSoftwareFallback(region display.Region, opts Options) Backend {
	return newDuplicationBackend("duplication-single", SoftwareFallback, region,
		grabVova, &singleSlot{}, opts.TargetFPS)
}

// DefaultCandidates returns the fixed fallback order
// HardwareAccelerated, SoftwareFallback, OSBlit.
func DefaultCandidates(opts Options) []Candidate {
	return []Candidate{
		{Kind: HardwareAccelerated, New: func(r display.Region) (Backend, error) {
			return NewHardwareAccelerated(r, opts), nil
		}},
		{Kind: SoftwareFallback, New: func(r display.Region) (Backend, error) {
			return NewSoftwareFallback(r, opts), nil
		}},
		{Kind: OSBlit, New: func(r display.Region) (Backend, error) {
			return NewOSBlit(r)
		}},
	}
}

func grabKbinani(rect image.Rectangle) (*image.RGBA, error) {
	return kscreenshot.CaptureRect(rect)
}

func grabVova(rect image.Rectangle) (*image.RGBA, error) {
	return vscreenshot.CaptureRect(rect)
}
