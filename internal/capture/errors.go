package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend is returned by Factory.Create when every candidate failed.
	ErrNoBackend = errors.New("no capture backend could be initialized")

	// ErrNoVerificationFrame means a backend started but could not produce
	// the immediate test frame.
	ErrNoVerificationFrame = errors.New("backend produced no verification frame")

	// ErrUnsupportedPlatform is returned by backends with no implementation
	// for the running OS.
	ErrUnsupportedPlatform = errors.New("capture backend not supported on this platform")
)

// Stage names the point at which a candidate backend failed.
type Stage string

const (
	StageConstruct Stage = "construct"
	StageStart     Stage = "start"
	StageVerify    Stage = "verify"
)

// BackendInitError records why one capture strategy was discarded.
type BackendInitError struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *BackendInitError) Error() string {
	return fmt.Sprintf("%s backend failed during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *BackendInitError) Unwrap() error {
	return e.Err
}
