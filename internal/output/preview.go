package output

import (
	"context"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/aim"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/bryanchriswhite/FocusTracker/internal/overlay"
)

// Preview renders loop events with the overlay and writes them to an
// Output at most FPS times per second. Rendering happens on the Run
// goroutine; Observe only swaps in the latest event.
type Preview struct {
	out     Output
	overlay *overlay.Manager
	fps     int
	cps     func() float64
	// viewers, when set, lets rendering pause while nobody is watching.
	viewers func() int

	latest chan aim.Event
}

// NewPreview creates a preview. cps may be nil.
func NewPreview(out Output, ov *overlay.Manager, fps int, cps func() float64) *Preview {
	if fps <= 0 {
		fps = 15
	}
	p := &Preview{
		out:     out,
		overlay: ov,
		fps:     fps,
		cps:     cps,
		latest:  make(chan aim.Event, 1),
	}
	if counter, ok := out.(interface{ ClientCount() int }); ok {
		p.viewers = counter.ClientCount
	}
	return p
}

// Observe implements aim.Observer. It never blocks: an event still waiting
// to be rendered is replaced.
func (p *Preview) Observe(ev aim.Event) {
	select {
	case p.latest <- ev:
		return
	default:
	}
	select {
	case <-p.latest:
	default:
	}
	select {
	case p.latest <- ev:
	default:
	}
}

// Run renders until ctx is done.
func (p *Preview) Run(ctx context.Context) {
	log := logger.WithComponent("preview")
	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var ev aim.Event
		select {
		case ev = <-p.latest:
		default:
			continue
		}
		if p.viewers != nil && p.viewers() == 0 {
			continue
		}

		if err := p.render(ev); err != nil {
			log.Debug().Err(err).Msg("Preview frame dropped")
		}
	}
}

func (p *Preview) render(ev aim.Event) error {
	if ev.Frame == nil {
		return nil
	}
	img := ev.Frame.RGBA()

	scene := overlay.Scene{
		Detections: ev.Detections,
		Result:     ev.Result,
		Gated:      ev.Gated,
	}
	if p.cps != nil {
		scene.CPS = p.cps()
	}
	if p.overlay != nil {
		p.overlay.Render(img, scene)
	}
	return p.out.WriteFrame(img)
}
