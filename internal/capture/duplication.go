package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/rs/zerolog"
)

const statsLogInterval = 5 * time.Second

// grabFunc copies rect out of the screen.
type grabFunc func(rect image.Rectangle) (*image.RGBA, error)

// duplicationBackend runs a producer goroutine that keeps grabbing the
// region into a frameStore. LatestFrame is a non-blocking read of the store.
type duplicationBackend struct {
	name     string
	kind     Kind
	region   display.Region
	grab     grabFunc
	store    frameStore
	interval time.Duration

	mu      sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}

	sequence atomic.Uint64
	captures atomic.Uint64
	skipped  atomic.Uint64
	log      *zerolog.Logger
}

func newDuplicationBackend(name string, kind Kind, region display.Region, grab grabFunc, store frameStore, targetFPS int) *duplicationBackend {
	var interval time.Duration
	if targetFPS > 0 {
		interval = time.Second / time.Duration(targetFPS)
	}
	return &duplicationBackend{
		name:     name,
		kind:     kind,
		region:   region,
		grab:     grab,
		store:    store,
		interval: interval,
		log:      logger.WithComponent(name),
	}
}

func (d *duplicationBackend) Name() string { return d.name }

func (d *duplicationBackend) Kind() Kind { return d.kind }

// Start grabs the first frame synchronously so a caller may verify the
// backend immediately, then launches the producer.
func (d *duplicationBackend) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("backend already started")
	}

	first, err := d.capture()
	if err != nil {
		return fmt.Errorf("initial grab: %w", err)
	}
	d.store.Put(first)

	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	d.running.Store(true)
	go d.produce(d.stopCh, d.done)

	d.log.Info().
		Stringer("region", d.region).
		Dur("interval", d.interval).
		Msg("Capture producer started")
	return nil
}

// Stop halts the producer and drops buffered frames.
func (d *duplicationBackend) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	close(d.stopCh)
	<-d.done
	d.store.Reset()

	d.log.Info().
		Uint64("captures", d.captures.Load()).
		Uint64("skipped", d.skipped.Load()).
		Msg("Capture producer stopped")
	return nil
}

func (d *duplicationBackend) LatestFrame() (*Frame, bool) {
	if !d.running.Load() {
		return nil, false
	}
	return d.store.Latest()
}

func (d *duplicationBackend) produce(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	statsTicker := time.NewTicker(statsLogInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-statsTicker.C:
			d.log.Debug().
				Uint64("captures", d.captures.Load()).
				Uint64("skipped", d.skipped.Load()).
				Msg("capture.stats")
		default:
		}

		start := time.Now()
		f, err := d.capture()
		if err != nil {
			d.skipped.Add(1)
			d.log.Trace().Err(err).Msg("Grab failed")
			if !sleepOrStop(stop, time.Millisecond) {
				return
			}
			continue
		}
		d.store.Put(f)

		if wait := d.interval - time.Since(start); wait > 0 {
			if !sleepOrStop(stop, wait) {
				return
			}
		}
	}
}

func (d *duplicationBackend) capture() (*Frame, error) {
	img, err := d.grab(d.region.Rect())
	if err != nil {
		return nil, err
	}
	f, err := frameFromRGBA(img, d.region.Width(), d.region.Height())
	if err != nil {
		return nil, err
	}
	f.Sequence = d.sequence.Add(1)
	f.CapturedAt = time.Now()
	d.captures.Add(1)
	return f, nil
}

func sleepOrStop(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
