package aim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/actuate"
	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/config"
	"github.com/bryanchriswhite/FocusTracker/internal/detect"
	"github.com/bryanchriswhite/FocusTracker/internal/input"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
)

type fakeBackend struct {
	frames []*capture.Frame // nil entries are absent frames; last entry repeats
	calls  int
	stops  int
}

func (b *fakeBackend) Name() string       { return "fake" }
func (b *fakeBackend) Kind() capture.Kind { return capture.OSBlit }
func (b *fakeBackend) Start() error       { return nil }
func (b *fakeBackend) Stop() error        { b.stops++; return nil }

func (b *fakeBackend) LatestFrame() (*capture.Frame, bool) {
	i := min(b.calls, len(b.frames)-1)
	b.calls++
	f := b.frames[i]
	return f, f != nil
}

type fakeDetector struct {
	results [][]tracker.DetectionBox
	err     error
	panicAt int // 1-based call number that panics, 0 never
	calls   int
	seen    []*capture.Frame
}

func (d *fakeDetector) Detect(f *capture.Frame, _ int) ([]tracker.DetectionBox, error) {
	d.calls++
	d.seen = append(d.seen, f)
	if d.panicAt == d.calls {
		panic("inference exploded")
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.results) == 0 {
		return nil, nil
	}
	return d.results[min(d.calls-1, len(d.results)-1)], nil
}

func (d *fakeDetector) Close() error { return nil }

// fakeKeys reports the quit key as pressed from the quitAfter-th poll on.
type fakeKeys struct {
	quit      input.Key
	quitAfter int
	polls     int
	held      bool
	toggled   bool
}

func (k *fakeKeys) Pressed(key input.Key) bool {
	if key == k.quit {
		k.polls++
		return k.quitAfter > 0 && k.polls >= k.quitAfter
	}
	return k.held
}

func (k *fakeKeys) Toggled(input.Key) bool { return k.toggled }
func (k *fakeKeys) Close() error           { return nil }

type recordingSink struct {
	mu    sync.Mutex
	moves [][2]int
}

func (s *recordingSink) MoveBy(dx, dy int) error {
	s.mu.Lock()
	s.moves = append(s.moves, [2]int{dx, dy})
	s.mu.Unlock()
	return nil
}

type eventRecorder struct{ events []Event }

func (r *eventRecorder) Observe(ev Event) { r.events = append(r.events, ev) }

func testFrame(seq uint64) *capture.Frame {
	f := capture.NewFrame(100, 100)
	for i := range f.Pix {
		f.Pix[i] = 0xAA
	}
	f.Sequence = seq
	return f
}

func newTestLoop(b capture.Backend, d detect.Detector, k input.KeyState, s actuate.Sink, opts Options) *Loop {
	if opts.Quit.IsZero() {
		opts.Quit = input.MustParseKey("q")
	}
	if opts.Modifier.IsZero() {
		opts.Modifier = input.MustParseKey("capslock")
	}
	opts.InputSize = 100
	opts.IdleBackoff = time.Microsecond
	tr := tracker.New(tracker.Options{FrameWidth: 100, FrameHeight: 100, Sensitivity: 0.5, HeadshotBias: true})
	return New(b, d, tr, k, s, opts)
}

func TestStepWithoutFrameKeepsState(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{nil}}
	d := &fakeDetector{}
	l := newTestLoop(b, d, nil, nil, Options{})

	prev := &tracker.Point{X: 12, Y: 34}
	got, processed := l.step(prev)
	if processed {
		t.Fatalf("absent frame must not count as processed")
	}
	if got != prev {
		t.Fatalf("state changed on absent frame: %v", got)
	}
	if d.calls != 0 {
		t.Fatalf("detector must not run without a frame")
	}
	if s := l.Stats(); s.MissingFrames != 1 || s.Frames != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestStepDetectorErrorKeepsState(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	d := &fakeDetector{err: errors.New("cuda oom")}
	l := newTestLoop(b, d, nil, nil, Options{})

	prev := &tracker.Point{X: 1, Y: 2}
	if got, _ := l.step(prev); got != prev {
		t.Fatalf("state changed on detector error")
	}
	if l.Stats().DetectorErrors != 1 {
		t.Fatalf("expected detector error to be counted")
	}
}

func TestStepTracksAndGates(t *testing.T) {
	det := []tracker.DetectionBox{{CenterX: 0.8, CenterY: 0.5, Width: 0.1, Height: 0.5, Confidence: 0.9}}

	tests := []struct {
		name      string
		mode      string
		keys      *fakeKeys
		wantMoves int
	}{
		{"toggled off", config.ModifierToggled, &fakeKeys{}, 0},
		{"toggled on", config.ModifierToggled, &fakeKeys{toggled: true}, 1},
		{"held", config.ModifierHeld, &fakeKeys{held: true}, 1},
		{"always", config.ModifierAlways, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
			d := &fakeDetector{results: [][]tracker.DetectionBox{det}}
			sink := &recordingSink{}
			var keys input.KeyState
			if tt.keys != nil {
				keys = tt.keys
			}
			l := newTestLoop(b, d, keys, sink, Options{ModifierMode: tt.mode})
			rec := &eventRecorder{}
			l.AddObserver(rec)

			state, processed := l.step(nil)
			if !processed || state == nil {
				t.Fatalf("expected a tracked target")
			}
			if state.X != 80 || state.Y != 50 {
				t.Fatalf("expected state at box centre (80, 50), got %v", *state)
			}
			if len(sink.moves) != tt.wantMoves {
				t.Fatalf("expected %d moves, got %v", tt.wantMoves, sink.moves)
			}
			// aim y = 50 - 50*0.38 = 31; motion = (30, -19) * 0.5
			if tt.wantMoves == 1 && sink.moves[0] != [2]int{15, -9} {
				t.Fatalf("expected truncated move (15, -9), got %v", sink.moves[0])
			}
			if len(rec.events) != 1 || rec.events[0].Armed != (tt.wantMoves == 1) {
				t.Fatalf("unexpected events %+v", rec.events)
			}
			if !rec.events[0].Result.HasTarget() {
				t.Fatalf("event should carry the tracker result")
			}
		})
	}
}

type observerFunc func(Event)

func (f observerFunc) Observe(ev Event) { f(ev) }

func TestObserversSeeFrameBeforeMove(t *testing.T) {
	det := []tracker.DetectionBox{{CenterX: 0.8, CenterY: 0.5, Width: 0.1, Height: 0.5, Confidence: 0.9}}
	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	d := &fakeDetector{results: [][]tracker.DetectionBox{det}}

	var order []string
	sink := actuate.SinkFunc(func(dx, dy int) error {
		order = append(order, "move")
		return nil
	})
	l := newTestLoop(b, d, nil, sink, Options{ModifierMode: config.ModifierAlways})
	l.AddObserver(observerFunc(func(ev Event) {
		if !ev.Armed {
			t.Errorf("expected an armed event")
		}
		order = append(order, "track")
	}))

	l.step(nil)

	if len(order) != 2 || order[0] != "track" || order[1] != "move" {
		t.Fatalf("expected [track move], got %v", order)
	}
	if l.Stats().Moves != 1 {
		t.Fatalf("expected one counted move, got %d", l.Stats().Moves)
	}
}

func TestStepNoDetectionsClearsState(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	l := newTestLoop(b, &fakeDetector{}, nil, &recordingSink{}, Options{ModifierMode: config.ModifierAlways})

	if got, processed := l.step(&tracker.Point{X: 5, Y: 5}); !processed || got != nil {
		t.Fatalf("expected state to reset when nothing is detected, got %v", got)
	}
}

func TestMaskAppliesToCopy(t *testing.T) {
	frame := testFrame(1)
	b := &fakeBackend{frames: []*capture.Frame{frame}}
	d := &fakeDetector{}
	l := newTestLoop(b, d, nil, nil, Options{Mask: detect.Mask{Enabled: true, Width: 10, Height: 10}})

	l.step(nil)

	if len(d.seen) != 1 || d.seen[0] == frame {
		t.Fatalf("detector should receive a masked copy")
	}
	last := len(frame.Pix) - 100*capture.BytesPerPixel
	if d.seen[0].Pix[last] != 0 {
		t.Fatalf("masked copy should have a cleared bottom-left corner")
	}
	if frame.Pix[last] != 0xAA {
		t.Fatalf("backend frame must not be modified")
	}
}

func TestRunStopsOnQuitKey(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{nil, testFrame(1)}}
	keys := &fakeKeys{quit: input.MustParseKey("q"), quitAfter: 4}
	l := newTestLoop(b, &fakeDetector{}, keys, nil, Options{})

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.stops != 1 {
		t.Fatalf("expected exactly one Stop, got %d", b.stops)
	}
	if got := l.Stats().Iterations; got != 3 {
		t.Fatalf("expected 3 iterations before quit, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	l := newTestLoop(b, &fakeDetector{}, nil, nil, Options{})
	if err := l.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.stops != 1 {
		t.Fatalf("expected exactly one Stop, got %d", b.stops)
	}
}

func TestRunRecoversPanicAndStopsOnce(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	d := &fakeDetector{panicAt: 2}
	l := newTestLoop(b, d, &fakeKeys{}, nil, Options{})

	err := l.Run(context.Background())
	if !errors.Is(err, ErrLoopPanic) {
		t.Fatalf("expected ErrLoopPanic, got %v", err)
	}
	if b.stops != 1 {
		t.Fatalf("expected exactly one Stop after panic, got %d", b.stops)
	}

	// A second Run must not stop the backend again.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Run(ctx)
	if b.stops != 1 {
		t.Fatalf("Stop ran again: %d", b.stops)
	}
}

func TestRunReportsCPS(t *testing.T) {
	b := &fakeBackend{frames: []*capture.Frame{testFrame(1)}}
	keys := &fakeKeys{quit: input.MustParseKey("q"), quitAfter: 6}
	l := newTestLoop(b, &fakeDetector{}, keys, nil, Options{})

	// Each call advances the clock by 300ms, so the window closes after a few
	// processed frames.
	clock := time.Unix(0, 0)
	l.now = func() time.Time {
		clock = clock.Add(300 * time.Millisecond)
		return clock
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Stats().CPS == 0 {
		t.Fatalf("expected a CPS sample")
	}
}
