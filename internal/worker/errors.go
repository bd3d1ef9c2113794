// Package worker implements the job orchestrator and its message protocol:
// one request drives either a single deterministic simulation or a grid
// search, with cooperative cancellation, a wall-clock deadline, and batched
// progress reporting.
package worker

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled marks a job stopped by an explicit cancellation request.
// Not a failure; it maps to the cancelled response, never to error.
var ErrCancelled = errors.New("job cancelled")

// ErrBusy is returned by Start while another job is active.
var ErrBusy = errors.New("another job is already active")

// ConfigError is a fatal request problem: missing or invalid grid
// configuration, or an unresolvable creature or move identifier. Reported
// immediately, no partial summary.
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.msg
}

// TimeoutError reports a job aborted at its wall-clock deadline, naming how
// far the evaluation got.
type TimeoutError struct {
	Processed int
	Total     int
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: processed %d of %d grid points", e.Elapsed.Round(time.Millisecond), e.Processed, e.Total)
}

// ComputationError wraps a failure surfaced by the damage calculator or the
// stat-resolution collaborator during one grid point's evaluation. Fatal to
// the whole job; a missing point would silently corrupt the weighted
// aggregates.
type ComputationError struct {
	Point string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed at %s: %v", e.Point, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
