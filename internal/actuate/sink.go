// Package actuate delivers per-frame relative motion to its consumers.
package actuate

import (
	"errors"
	"sync"

	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/rs/zerolog"
)

// Sink consumes relative motion in whole pixels.
type Sink interface {
	MoveBy(dx, dy int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(dx, dy int) error

func (f SinkFunc) MoveBy(dx, dy int) error { return f(dx, dy) }

// LogSink records each move at debug level.
type LogSink struct {
	log *zerolog.Logger
}

// NewLogSink creates a sink logging under the "actuation" component.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithComponent("actuation")}
}

func (s *LogSink) MoveBy(dx, dy int) error {
	s.log.Debug().Int("dx", dx).Int("dy", dy).Msg("Move")
	return nil
}

// Fanout forwards every move to each sink in order. All sinks are called
// even when one fails; the failures are joined.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout creates a fan-out over sinks. Nil sinks are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends a sink.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

func (f *Fanout) MoveBy(dx, dy int) error {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.MoveBy(dx, dy); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
