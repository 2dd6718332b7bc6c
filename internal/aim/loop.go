// Package aim runs the per-frame acquire, detect, track and emit cycle.
package aim

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/actuate"
	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/config"
	"github.com/bryanchriswhite/FocusTracker/internal/detect"
	"github.com/bryanchriswhite/FocusTracker/internal/input"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
	"github.com/rs/zerolog"
)

// ErrLoopPanic wraps a panic recovered from an iteration.
var ErrLoopPanic = errors.New("aim loop panicked")

// Options configures a Loop.
type Options struct {
	Quit         input.Key
	Modifier     input.Key
	ModifierMode string
	InputSize    int
	Mask         detect.Mask
	CPSDisplay   bool
	// IdleBackoff is slept after an iteration without a frame.
	IdleBackoff time.Duration
}

// Event describes one processed frame. Frame is shared and must not be
// modified.
type Event struct {
	Frame      *capture.Frame
	Detections []tracker.DetectionBox
	Result     tracker.Result
	Gated      bool
	// Armed reports that Result.Motion is handed to the sink once observers
	// have seen the event.
	Armed bool
	At    time.Time
}

// Observer receives an Event for every processed frame. Observe is called
// on the loop goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// Stats are cumulative loop counters.
type Stats struct {
	Iterations     uint64  `json:"iterations"`
	Frames         uint64  `json:"frames"`
	MissingFrames  uint64  `json:"missing_frames"`
	DetectorErrors uint64  `json:"detector_errors"`
	Moves          uint64  `json:"moves"`
	CPS            float64 `json:"cps"`
}

// Loop drives one capture backend until cancelled or the quit key is pressed.
type Loop struct {
	backend  capture.Backend
	detector detect.Detector
	tracker  *tracker.Tracker
	keys     input.KeyState
	sink     actuate.Sink
	opts     Options

	mu        sync.RWMutex
	observers []Observer

	stopOnce sync.Once

	iterations     atomic.Uint64
	frames         atomic.Uint64
	missing        atomic.Uint64
	detectorErrors atomic.Uint64
	moves          atomic.Uint64
	cps            atomic.Uint64 // frames in the last full second

	now func() time.Time
	log *zerolog.Logger
}

// New creates a loop. keys may be nil, in which case the quit key is never
// seen and only ModifierAlways opens the gate.
func New(backend capture.Backend, det detect.Detector, tr *tracker.Tracker, keys input.KeyState, sink actuate.Sink, opts Options) *Loop {
	if opts.ModifierMode == "" {
		opts.ModifierMode = config.ModifierToggled
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = time.Millisecond
	}
	return &Loop{
		backend:  backend,
		detector: det,
		tracker:  tr,
		keys:     keys,
		sink:     sink,
		opts:     opts,
		now:      time.Now,
		log:      logger.WithComponent("aim-loop"),
	}
}

// AddObserver registers o for every subsequent Event.
func (l *Loop) AddObserver(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Iterations:     l.iterations.Load(),
		Frames:         l.frames.Load(),
		MissingFrames:  l.missing.Load(),
		DetectorErrors: l.detectorErrors.Load(),
		Moves:          l.moves.Load(),
		CPS:            float64(l.cps.Load()),
	}
}

// Run loops until ctx is done or the quit key is pressed, both of which
// return nil. The backend is stopped exactly once when Run returns, including
// after a panic, which is returned as ErrLoopPanic.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer l.stopBackend()
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Aim loop panicked")
			err = fmt.Errorf("%w: %v", ErrLoopPanic, r)
		}
	}()

	l.log.Info().
		Str("backend", l.backend.Name()).
		Stringer("quit", l.opts.Quit).
		Stringer("modifier", l.opts.Modifier).
		Str("modifier_mode", l.opts.ModifierMode).
		Msg("Aim loop started")

	var state *tracker.Point
	windowStart := l.now()
	var windowFrames uint64

	for {
		if ctx.Err() != nil {
			l.log.Info().Msg("Aim loop cancelled")
			return nil
		}
		if l.keys != nil && !l.opts.Quit.IsZero() && l.keys.Pressed(l.opts.Quit) {
			l.log.Info().Stringer("key", l.opts.Quit).Msg("Quit key pressed")
			return nil
		}

		var processed bool
		state, processed = l.step(state)
		if processed {
			windowFrames++
		} else {
			time.Sleep(l.opts.IdleBackoff)
		}

		if now := l.now(); now.Sub(windowStart) > time.Second {
			l.cps.Store(windowFrames)
			if l.opts.CPSDisplay {
				l.log.Info().Uint64("cps", windowFrames).Msg("CPS")
			}
			windowFrames = 0
			windowStart = now
		}
	}
}

// step runs one iteration and returns the track state for the next one and
// whether a frame was processed. Without a frame the state is returned
// unchanged.
func (l *Loop) step(state *tracker.Point) (*tracker.Point, bool) {
	l.iterations.Add(1)

	frame, ok := l.backend.LatestFrame()
	if !ok {
		l.missing.Add(1)
		return state, false
	}
	l.frames.Add(1)

	if l.opts.Mask.Enabled {
		frame = frame.Clone()
		l.opts.Mask.Apply(frame)
	}

	dets, err := l.detector.Detect(frame, l.opts.InputSize)
	if err != nil {
		l.detectorErrors.Add(1)
		l.log.Debug().Err(err).Uint64("sequence", frame.Sequence).Msg("Detection failed, skipping frame")
		return state, false
	}

	res := l.tracker.Update(dets, state)

	gated := l.gateOpen()
	armed := res.HasTarget() && gated && l.sink != nil

	l.notify(Event{
		Frame:      frame,
		Detections: dets,
		Result:     res,
		Gated:      gated,
		Armed:      armed,
		At:         l.now(),
	})

	if armed {
		dx, dy := res.Motion.Ints()
		if err := l.sink.MoveBy(dx, dy); err != nil {
			l.log.Warn().Err(err).Int("dx", dx).Int("dy", dy).Msg("Actuation failed")
		} else {
			l.moves.Add(1)
		}
	}

	return res.State, true
}

func (l *Loop) gateOpen() bool {
	switch l.opts.ModifierMode {
	case config.ModifierAlways:
		return true
	case config.ModifierHeld:
		return l.keys != nil && l.keys.Pressed(l.opts.Modifier)
	default:
		return l.keys != nil && l.keys.Toggled(l.opts.Modifier)
	}
}

func (l *Loop) notify(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.observers {
		o.Observe(ev)
	}
}

func (l *Loop) stopBackend() {
	l.stopOnce.Do(func() {
		if err := l.backend.Stop(); err != nil {
			l.log.Warn().Err(err).Str("backend", l.backend.Name()).Msg("Stopping capture backend failed")
			return
		}
		l.log.Info().Str("backend", l.backend.Name()).Msg("Capture backend stopped")
	})
}
