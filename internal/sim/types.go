package sim

import (
	"context"
	"errors"

	"github.com/san-kum/mdsim/internal/system"
)

// Backend advances the physical state of a simulation by discrete
// steps. It is exclusively owned by the Simulation for the duration of
// a run: the engine reads and overwrites its step counter.
type Backend interface {
	// RunPre performs backend-specific setup before stepping starts;
	// on restart it may adjust the step counter to resume from
	// persisted progress.
	RunPre(restart bool) error
	// RunUntil advances the physical state up to the given absolute
	// step. It may block.
	RunUntil(ctx context.Context, step int) error
	Steps() int
	SetSteps(step int)
}

// Optional backend capabilities, probed by the engine and tolerated
// when absent.

// Checkpointer persists resumable state.
type Checkpointer interface {
	WriteCheckpoint() error
}

// Versioned reports a backend version, used only in the header report.
type Versioned interface {
	Version() string
}

// DisplacementReporter exposes the root mean square displacement as a
// scalar quality metric for the footer report.
type DisplacementReporter interface {
	RMSD() float64
}

// OutputSetter lets the engine hand the configured output path to the
// backend.
type OutputSetter interface {
	SetOutputPath(path string)
}

// SystemProvider exposes the backend's physical system.
type SystemProvider interface {
	System() *system.System
}

// Trajectory is a backend-owned configuration writer, exposed
// read-only to observers through the engine.
type Trajectory interface {
	Write(sys *system.System, step int) error
	Clear() error
}

// TrajectoryProvider exposes the backend trajectory handle.
type TrajectoryProvider interface {
	Trajectory() Trajectory
}

// Observer is a unit of periodic work registered with its own
// schedule. Returning ErrEndOfRun (possibly wrapped) ends the run
// normally; any other error ends it as a failure.
type Observer interface {
	Observe(s *Simulation) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s *Simulation) error

func (f ObserverFunc) Observe(s *Simulation) error { return f(s) }

// Clearer is an optional observer hook invoked on a fresh run to
// discard output left over from a previous run at the same path.
type Clearer interface {
	Clear(s *Simulation) error
}

// Meter is an optional observer capability for rate-reporting
// observers. Meters are reinitialized at the start of every run and
// are the only ordinary observers notified at step zero of a resumed
// run, so one-shot observers are not re-triggered.
type Meter interface {
	Observer
	ResetMeter()
}

// Role classifies a registration. Targeters are notified after all
// ordinary observers so output files are not cropped mid-batch.
type Role int

const (
	Ordinary Role = iota
	Targeter
)

func (r Role) String() string {
	if r == Targeter {
		return "targeter"
	}
	return "ordinary"
}

// ErrEndOfRun is the normal end-of-run signal. Targeters return it
// (usually wrapped) once their target condition holds.
var ErrEndOfRun = errors.New("end of run")

// ErrWallTimeLimit is returned by wall-time targeters. It is not an
// end-of-run signal: it propagates to the caller so queueing systems
// can resubmit the job.
var ErrWallTimeLimit = errors.New("wall time limit reached")

// Barrier synchronizes the participants of a cooperating multi-process
// job once, after pre-run setup and before stepping starts.
type Barrier func(ctx context.Context) error

// Handle identifies a registration in the callback registry. It is
// returned by Add and required by Remove.
type Handle struct {
	name  string
	role  Role
	sched Scheduler
	obs   Observer
}

func (h *Handle) Name() string         { return h.name }
func (h *Handle) Role() Role           { return h.role }
func (h *Handle) Scheduler() Scheduler { return h.sched }
