package host

import (
	"errors"
	"fmt"
)

// ErrSinkUnavailable is returned when the host error sink cannot accept a
// report. It means the host integration is misconfigured and is not recovered.
var ErrSinkUnavailable = errors.New("host error sink unavailable")

// World is the context handle passed to every task during a drain. It must not
// be retained by a task beyond the call it was passed to.
type World interface {
	// Tick reports the host tick the current drain is running in.
	Tick() uint64
}

// Host is the embedding runtime, as seen by the drain engine.
type Host interface {
	// CurrentWorld returns the world handle for the drain about to run.
	CurrentWorld() World

	// ReportError surfaces one task failure to the host, e.g. as a stack
	// trace. It is called exactly once per failing task.
	ReportError(message string) error
}

// Funcs adapts plain functions to the Host interface.
type Funcs struct {
	WorldFn  func() World
	ReportFn func(message string) error
}

// Compile-time interface satisfaction check.
var _ Host = Funcs{}

// CurrentWorld implements Host.
func (f Funcs) CurrentWorld() World {
	if f.WorldFn == nil {
		return StaticWorld(0)
	}
	return f.WorldFn()
}

// ReportError implements Host. A nil ReportFn is an unavailable sink.
func (f Funcs) ReportError(message string) error {
	if f.ReportFn == nil {
		return fmt.Errorf("report %q: %w", message, ErrSinkUnavailable)
	}
	return f.ReportFn(message)
}

// StaticWorld is a World frozen at a single tick.
type StaticWorld uint64

// Tick implements World.
func (w StaticWorld) Tick() uint64 { return uint64(w) }
