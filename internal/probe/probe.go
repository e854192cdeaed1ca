// Package probe samples health signals from the monitored Postgres
// instance. Probes are read-only; a failing probe reports a typed error
// and never aborts the other probes in a cycle.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Probe is a single health-signal sampling routine.
type Probe interface {
	Name() string
	Collect(ctx context.Context) (Sample, error)
}

// Sample is the closed set of structured probe results. The evaluator
// switches exhaustively over these variants.
type Sample interface {
	isSample()
}

type ConnectionSample struct {
	Active int
	Max    int
}

type LongQuery struct {
	PID      int
	Duration time.Duration
	Query    string
}

type LongQuerySample struct {
	ThresholdSeconds int
	Queries          []LongQuery
}

type Replica struct {
	Client   string
	LagBytes int64
}

type ReplicationSample struct {
	Replicas []Replica
}

type CacheHitSample struct {
	RatioPct float64
}

type TableBloat struct {
	Table      string
	DeadTuples int64
	LiveTuples int64
	DeadPct    float64
}

type DeadTupleSample struct {
	Tables []TableBloat
}

type LockSample struct {
	Blocked int
}

func (ConnectionSample) isSample()  {}
func (LongQuerySample) isSample()   {}
func (ReplicationSample) isSample() {}
func (CacheHitSample) isSample()    {}
func (DeadTupleSample) isSample()   {}
func (LockSample) isSample()        {}

// ErrUnavailable marks a probe that cannot run at all on this instance
// (missing view, permission denied). Distinct from a per-cycle timeout.
var ErrUnavailable = errors.New("probe unavailable")

// Error wraps a probe failure with the probe name and whether it was a
// timeout or an availability problem.
type Error struct {
	Probe string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Probe, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the error was caused by the per-probe deadline.
func Timeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Probe: name, Err: err}
}
