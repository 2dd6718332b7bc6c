package capture

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
)

// Constructor builds an unstarted backend bound to region.
type Constructor func(region display.Region) (Backend, error)

// Candidate is one entry in the factory's ranked list.
type Candidate struct {
	Kind Kind
	New  Constructor
}

// Factory tries capture strategies in priority order and returns the first
// one that constructs, starts and delivers a test frame.
type Factory struct {
	candidates []Candidate
}

// NewFactory creates a factory that tries candidates in the given order.
func NewFactory(candidates ...Candidate) *Factory {
	return &Factory{candidates: candidates}
}

// Candidates returns the ranked list in try order.
func (f *Factory) Candidates() []Candidate {
	return append([]Candidate(nil), f.candidates...)
}

// Create returns a running backend for region. Candidates after the first
// success are never constructed. Failed candidates are stopped and dropped.
func (f *Factory) Create(region display.Region) (Backend, error) {
	log := logger.WithComponent("capture-factory")

	if region.Empty() {
		return nil, fmt.Errorf("%w: empty region %v", ErrNoBackend, region)
	}

	var failures []error
	for _, c := range f.candidates {
		log.Info().
			Stringer("backend", c.Kind).
			Stringer("region", region).
			Msg("Attempting capture backend")

		b, err := f.try(c, region)
		if err != nil {
			log.Warn().Err(err).Stringer("backend", c.Kind).Msg("Capture backend unavailable, falling back")
			failures = append(failures, err)
			continue
		}

		log.Info().
			Str("name", b.Name()).
			Stringer("backend", b.Kind()).
			Msg("Capture backend initialized")
		return b, nil
	}

	if len(failures) == 0 {
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(failures...))
}

func (f *Factory) try(c Candidate, region display.Region) (b Backend, err error) {
	stage := StageConstruct
	defer func() {
		if r := recover(); r != nil {
			discard(b)
			b = nil
			err = &BackendInitError{Kind: c.Kind, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if c.New == nil {
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: errors.New("no constructor")}
	}
	b, err = c.New(region)
	if err != nil {
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: err}
	}
	if b == nil {
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: errors.New("constructor returned nil backend")}
	}

	stage = StageStart
	if err := b.Start(); err != nil {
		discard(b)
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: err}
	}

	stage = StageVerify
	frame, ok := b.LatestFrame()
	if !ok {
		discard(b)
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: ErrNoVerificationFrame}
	}
	if err := frame.Validate(); err != nil {
		discard(b)
		return nil, &BackendInitError{Kind: c.Kind, Stage: stage, Err: err}
	}

	return b, nil
}

// discard stops a rejected backend. A panicking Stop is logged and
// swallowed so the factory can move on to the next candidate.
func discard(b Backend) {
	if b == nil {
		return
	}
	log := logger.WithComponent("capture-factory")
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("name", b.Name()).Msg("Stop on discarded backend panicked")
		}
	}()
	if err := b.Stop(); err != nil {
		log.Debug().Err(err).Str("name", b.Name()).Msg("Stop on discarded backend failed")
	}
}
