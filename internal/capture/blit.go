package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/rs/zerolog"
)

// blitAPI is the device-context surface the blit backend drives. Handles are
// opaque; zero is never a valid handle.
type blitAPI interface {
	// WindowDC acquires the device context of the desktop window.
	WindowDC() (uintptr, error)
	ReleaseWindowDC(dc uintptr) error

	// CreateCompatibleDC creates a memory context compatible with dc.
	CreateCompatibleDC(dc uintptr) (uintptr, error)
	DeleteDC(dc uintptr) error

	// CreateCompatibleBitmap creates a w x h bitmap compatible with dc.
	CreateCompatibleBitmap(dc uintptr, w, h int) (uintptr, error)
	DeleteObject(obj uintptr) error

	// SelectObject selects obj into dc and returns the previously selected
	// object, which may be zero.
	SelectObject(dc, obj uintptr) (uintptr, error)

	// BitBlt copies a w x h block at (x, y) of src into dst at (0, 0).
	BitBlt(dst uintptr, w, h int, src uintptr, x, y int) error

	// BitmapBits writes the bitmap as top-down BGRA rows into dst.
	BitmapBits(dc, bmp uintptr, w, h int, dst []byte) error

	// Close releases the API connection itself.
	Close() error
}

// blitBackend grabs synchronously on the calling goroutine. Every OS handle
// acquired during a grab is released before the grab returns, on every path.
type blitBackend struct {
	region display.Region
	api    blitAPI

	mu       sync.Mutex // serialises device context use
	running  bool
	closed   bool
	sequence atomic.Uint64
	log      *zerolog.Logger
}

// NewOSBlit builds the device-context blit backend for the running platform.
func NewOSBlit(region display.Region) (Backend, error) {
	api, err := newPlatformBlitAPI()
	if err != nil {
		return nil, err
	}
	return newBlitBackend(region, api), nil
}

func newBlitBackend(region display.Region, api blitAPI) *blitBackend {
	return &blitBackend{
		region: region,
		api:    api,
		log:    logger.WithComponent("blit-capturer"),
	}
}

func (b *blitBackend) Name() string { return "os-blit" }

func (b *blitBackend) Kind() Kind { return OSBlit }

// Start marks the backend live. Blitting has no start-up failure signal;
// problems surface on the first LatestFrame.
func (b *blitBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("blit backend already stopped")
	}
	b.running = true
	return nil
}

func (b *blitBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.running = false
	if b.closed {
		return nil
	}
	b.closed = true
	return b.api.Close()
}

func (b *blitBackend) LatestFrame() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil, false
	}

	f, err := b.grab()
	if err != nil {
		b.log.Debug().Err(err).Stringer("region", b.region).Msg("Blit capture failed")
		return nil, false
	}
	return f, true
}

// grab performs one acquire, copy, extract, release cycle. Each handle's
// release is deferred as soon as it is acquired, so the releases run in
// reverse order: bitmap, memory context, window context.
func (b *blitBackend) grab() (*Frame, error) {
	w, h := b.region.Width(), b.region.Height()
	api := b.api

	windowDC, err := api.WindowDC()
	if err != nil {
		return nil, fmt.Errorf("acquire window dc: %w", err)
	}
	defer b.release("window dc", func() error { return api.ReleaseWindowDC(windowDC) })

	memDC, err := api.CreateCompatibleDC(windowDC)
	if err != nil {
		return nil, fmt.Errorf("create memory dc: %w", err)
	}
	defer b.release("memory dc", func() error { return api.DeleteDC(memDC) })

	bitmap, err := api.CreateCompatibleBitmap(windowDC, w, h)
	if err != nil {
		return nil, fmt.Errorf("create bitmap %dx%d: %w", w, h, err)
	}
	defer b.release("bitmap", func() error { return api.DeleteObject(bitmap) })

	prev, err := api.SelectObject(memDC, bitmap)
	if err != nil {
		return nil, fmt.Errorf("select bitmap: %w", err)
	}
	selected := true
	deselect := func() {
		if selected {
			selected = false
			if _, err := api.SelectObject(memDC, prev); err != nil {
				b.log.Debug().Err(err).Msg("Restoring previous selection failed")
			}
		}
	}
	defer deselect()

	if err := api.BitBlt(memDC, w, h, windowDC, b.region.Left, b.region.Top); err != nil {
		return nil, fmt.Errorf("bitblt at (%d,%d): %w", b.region.Left, b.region.Top, err)
	}

	// A bitmap must not be selected into a context while its bits are read.
	deselect()

	f := NewFrame(w, h)
	if err := api.BitmapBits(memDC, bitmap, w, h, f.Pix); err != nil {
		return nil, fmt.Errorf("extract bits: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.Sequence = b.sequence.Add(1)
	f.CapturedAt = time.Now()
	return f, nil
}

func (b *blitBackend) release(what string, fn func() error) {
	if err := fn(); err != nil {
		b.log.Warn().Err(err).Str("handle", what).Msg("Releasing blit handle failed")
	}
}
