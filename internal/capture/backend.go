package capture

import (
	"fmt"
)

// Kind identifies a capture strategy. The numeric order is the fallback
// priority used by DefaultCandidates.
type Kind int

const (
	// HardwareAccelerated is a duplication capturer backed by a ring buffer
	// filled by a producer goroutine.
	HardwareAccelerated Kind = iota
	// SoftwareFallback is a simpler duplication capturer holding one frame.
	SoftwareFallback
	// OSBlit copies the region out of the desktop device context on every
	// call. Always available, slow, synchronous.
	OSBlit
)

func (k Kind) String() string {
	switch k {
	case HardwareAccelerated:
		return "hardware-accelerated"
	case SoftwareFallback:
		return "software-fallback"
	case OSBlit:
		return "os-blit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Backend defines the capability surface every capture strategy implements.
type Backend interface {
	// Name returns a human-readable name for this backend
	Name() string

	// Kind reports which strategy this backend implements
	Kind() Kind

	// Start allocates OS or driver resources for the bound region.
	// A nil error means the backend is ready to serve frames.
	Start() error

	// Stop releases all resources. Safe to call on a backend whose Start
	// failed or was never called.
	Stop() error

	// LatestFrame returns the most recently completed frame. The boolean
	// is false when the backend is stopped or no frame is ready yet.
	// It never waits for the next frame to be produced.
	LatestFrame() (*Frame, bool)
}
