// Package sim drives step-based particle simulations. It decouples
// advancing the simulation (delegated to a Backend) from periodically
// doing something with the current state: observers registered with
// their own schedules are notified at the steps their schedulers
// compute, checkpoints are written on an independent cadence, and a
// targeter ends the run once its condition holds.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/san-kum/mdsim/internal/system"
)

// Version of the simulation engine, reported in the run header.
const Version = "0.4.0"

// targeterName is the registration name of the engine-owned max-step
// targeter, re-registered fresh on every Run call.
const targeterName = "target-steps"

// Simulation drives a Backend and orchestrates observer callbacks.
// It is not safe for concurrent use: execution is single-threaded and
// cooperative, one step-advance and one notification batch per loop
// iteration.
type Simulation struct {
	backend    Backend
	log        *slog.Logger
	restart    bool
	outputPath string
	checkpoint Scheduler
	barrier    Barrier

	handles      []*Handle
	maxSteps     int
	steps        int
	initialSteps int
	startTime    time.Time
}

// Option configures a Simulation at construction.
type Option func(*Simulation)

// WithOutputPath sets the base location for run output. The parent
// directory is created if missing.
func WithOutputPath(path string) Option {
	return func(s *Simulation) { s.outputPath = path }
}

// WithCheckpointInterval sets the checkpoint cadence in steps; zero
// disables periodic checkpoints (one is still written at normal
// termination).
func WithCheckpointInterval(interval int) Option {
	return func(s *Simulation) { s.checkpoint = Every(interval) }
}

// WithCheckpointSchedule replaces the checkpoint scheduler entirely.
func WithCheckpointSchedule(sched Scheduler) Option {
	return func(s *Simulation) { s.checkpoint = sched }
}

// WithRestart resumes from backend-reported progress instead of
// starting fresh.
func WithRestart(restart bool) Option {
	return func(s *Simulation) { s.restart = restart }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Simulation) { s.log = log }
}

// WithBarrier sets the cross-process barrier invoked once before
// stepping starts.
func WithBarrier(b Barrier) Option {
	return func(s *Simulation) { s.barrier = b }
}

// New creates a Simulation driving the given backend. A nil backend is
// replaced by a no-op one that only counts steps.
func New(backend Backend, opts ...Option) *Simulation {
	s := &Simulation{
		backend:    backend,
		log:        slog.Default(),
		checkpoint: Never(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = &noopBackend{}
	}
	if s.outputPath != "" {
		// Writers derive their own paths from the output path, so its
		// parent directory must exist.
		_ = os.MkdirAll(filepath.Dir(s.outputPath), 0o755)
	}
	return s
}

func (s *Simulation) Backend() Backend     { return s.backend }
func (s *Simulation) Logger() *slog.Logger { return s.log }
func (s *Simulation) OutputPath() string   { return s.outputPath }
func (s *Simulation) Restart() bool        { return s.restart }
func (s *Simulation) Steps() int           { return s.steps }
func (s *Simulation) InitialSteps() int    { return s.initialSteps }
func (s *Simulation) MaxSteps() int        { return s.maxSteps }

// System returns the backend's physical system, or nil if the backend
// has none attached.
func (s *Simulation) System() *system.System {
	if p, ok := s.backend.(SystemProvider); ok {
		return p.System()
	}
	return nil
}

// Trajectory returns the backend trajectory handle, or nil.
func (s *Simulation) Trajectory() Trajectory {
	if p, ok := s.backend.(TrajectoryProvider); ok {
		return p.Trajectory()
	}
	return nil
}

// RMSD returns the backend displacement metric, or 0 when the backend
// does not report one.
func (s *Simulation) RMSD() float64 {
	if r, ok := s.backend.(DisplacementReporter); ok {
		return r.RMSD()
	}
	return 0
}

// Add registers an observer under a unique name with a scheduler and
// an explicit role, returning the handle used for removal. Adding a
// name that is already registered replaces the old registration and
// re-evaluates its position in the notification order.
func (s *Simulation) Add(name string, role Role, sched Scheduler, obs Observer) *Handle {
	if old := s.lookup(name); old != nil {
		s.log.Debug("replacing observer", "name", name)
		s.remove(old)
	}
	h := &Handle{name: name, role: role, sched: sched, obs: obs}
	if role == Targeter {
		s.handles = append(s.handles, h)
		return h
	}
	// Ordinary registrations go before the first targeter: ordinary
	// observers always precede targeters, and insertion order is
	// preserved within each role.
	i := slices.IndexFunc(s.handles, func(x *Handle) bool { return x.role == Targeter })
	if i < 0 {
		s.handles = append(s.handles, h)
	} else {
		s.handles = slices.Insert(s.handles, i, h)
	}
	return h
}

// AddEvery registers an ordinary observer at a fixed step interval.
func (s *Simulation) AddEvery(name string, interval int, obs Observer) *Handle {
	return s.Add(name, Ordinary, Every(interval), obs)
}

// Remove unregisters a handle. Removing a handle that is not
// registered is a logged no-op, not an error.
func (s *Simulation) Remove(h *Handle) {
	if !slices.Contains(s.handles, h) {
		s.log.Debug("attempt to remove unregistered observer", "name", h.name)
		return
	}
	s.remove(h)
}

func (s *Simulation) lookup(name string) *Handle {
	for _, h := range s.handles {
		if h.name == name {
			return h
		}
	}
	return nil
}

func (s *Simulation) remove(h *Handle) {
	i := slices.Index(s.handles, h)
	if i >= 0 {
		s.handles = slices.Delete(s.handles, i, i+1)
	}
}

func (s *Simulation) targeters() []*Handle {
	var out []*Handle
	for _, h := range s.handles {
		if h.role == Targeter {
			out = append(out, h)
		}
	}
	return out
}

func (s *Simulation) ordinary() []*Handle {
	var out []*Handle
	for _, h := range s.handles {
		if h.role == Ordinary {
			out = append(out, h)
		}
	}
	return out
}

func (s *Simulation) meters() []*Handle {
	var out []*Handle
	for _, h := range s.handles {
		if _, ok := h.obs.(Meter); ok {
			out = append(out, h)
		}
	}
	return out
}

// notify invokes the observers in the order given. The first non-nil
// error stops the batch and is threaded back into the run loop.
func (s *Simulation) notify(due []*Handle) error {
	for _, h := range due {
		s.log.Debug("notify", "observer", h.name, "step", s.steps)
		if err := h.obs.Observe(s); err != nil {
			return err
		}
	}
	return nil
}

// ElapsedWallTime is the wall-clock time since the run started.
func (s *Simulation) ElapsedWallTime() time.Duration {
	return time.Since(s.startTime)
}

// WallTimePerStep is the average wall time per step since the run
// started. It is zero until at least one step has been performed.
func (s *Simulation) WallTimePerStep() time.Duration {
	n := s.steps - s.initialSteps
	if n <= 0 {
		return 0
	}
	return s.ElapsedWallTime() / time.Duration(n)
}

// WallTimePerStepParticle is the average wall time per step and
// particle, in seconds. It falls back to zero when no physical system
// is attached.
func (s *Simulation) WallTimePerStepParticle() float64 {
	sys := s.System()
	if sys == nil || len(sys.Particles) == 0 {
		return 0
	}
	return s.WallTimePerStep().Seconds() / float64(len(sys.Particles))
}

// writeCheckpoint delegates to the backend; a backend without
// checkpoint support is a silent no-op.
func (s *Simulation) writeCheckpoint() error {
	cp, ok := s.backend.(Checkpointer)
	if !ok {
		return nil
	}
	s.log.Debug("writing checkpoint", "step", s.steps)
	return cp.WriteCheckpoint()
}

// runPre deals with restart conditions before stepping starts.
func (s *Simulation) runPre(ctx context.Context) error {
	s.startTime = time.Now()
	if s.outputPath != "" {
		if o, ok := s.backend.(OutputSetter); ok {
			o.SetOutputPath(s.outputPath)
		}
		if !s.restart {
			// Fresh run: let observers discard prior output.
			for _, h := range s.handles {
				if c, ok := h.obs.(Clearer); ok {
					if err := c.Clear(s); err != nil {
						return fmt.Errorf("clear %s: %w", h.name, err)
					}
				}
			}
		}
	}
	if err := s.backend.RunPre(s.restart); err != nil {
		return err
	}
	if s.restart {
		// The backend may have reset its step counter from a
		// checkpoint; adopt it.
		s.steps = s.backend.Steps()
	}
	if s.barrier != nil {
		return s.barrier(ctx)
	}
	return nil
}

// runUntil advances the backend to the given absolute step and syncs
// both step counters.
func (s *Simulation) runUntil(ctx context.Context, step int) error {
	if err := s.backend.RunUntil(ctx, step); err != nil {
		return err
	}
	s.backend.SetSteps(step)
	s.steps = step
	return nil
}

// Run drives the simulation up to the given target step. On a fresh
// run the step counters are reset to zero; on a resumed run the target
// is not allowed to change, since a new target would break the output
// cadence of interval writers.
//
// Run returns nil on normal termination and on user cancellation; any
// other error is a run failure.
func (s *Simulation) Run(ctx context.Context, steps int) (err error) {
	defer s.log.Info("goodbye")

	if !s.restart || s.steps == 0 {
		s.maxSteps = steps
		s.steps = 0
		s.backend.SetSteps(0)
	} else if steps != s.maxSteps {
		s.log.Warn("target steps cannot change on resume", "target", s.maxSteps, "ignored", steps)
	}

	// The max-step targeter replaces any previous one.
	s.Add(targeterName, Targeter, Every(s.maxSteps), TargetSteps(s.maxSteps))

	s.reportHeader()
	if err := s.runPre(ctx); err != nil {
		return s.fail(err)
	}
	s.initialSteps = s.steps
	s.reportObservers()

	for _, h := range s.meters() {
		h.obs.(Meter).ResetMeter()
	}

	err = s.advance(ctx)
	switch {
	case err == nil:
		// User cancellation: clean stop, no final report.
		return nil
	case errors.Is(err, ErrEndOfRun):
		if cerr := s.writeCheckpoint(); cerr != nil {
			return s.fail(cerr)
		}
		s.reportEnd()
		return nil
	default:
		return s.fail(err)
	}
}

// advance performs the initial due-observer check and then the main
// loop. It returns nil on cancellation, ErrEndOfRun (wrapped) on
// normal termination and any other error on failure.
func (s *Simulation) advance(ctx context.Context) error {
	// Before stepping, check whether we can quit right away: a resumed
	// run may already have reached its target.
	if err := s.notify(s.targeters()); err != nil {
		return err
	}
	if s.steps == 0 {
		if err := s.notify(s.ordinary()); err != nil {
			return err
		}
	} else {
		// Resuming: only meters, so one-shot observers do not fire
		// again.
		if err := s.notify(s.meters()); err != nil {
			return err
		}
	}
	s.log.Info("starting", "step", s.steps)

	nexts := make([]int, 0, len(s.handles))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Run until any of the observers needs to be notified.
		nexts = nexts[:0]
		next := math.MaxInt
		for _, h := range s.handles {
			n := h.sched.Next(s)
			nexts = append(nexts, n)
			if n < next {
				next = n
			}
		}
		nextCheckpoint := s.checkpoint.Next(s)
		if nextCheckpoint < next {
			next = nextCheckpoint
		}

		if err := s.runUntil(ctx, next); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// Ties are expected: every observer whose trigger equals the
		// chosen step is notified in this batch, in registry order.
		var due []*Handle
		for i, h := range s.handles {
			if nexts[i] == next {
				due = append(due, h)
			}
		}
		if err := s.notify(due); err != nil {
			return err
		}
		// Checkpoint strictly after notifying, so observers see the
		// pre-checkpoint state of their own outputs.
		if next == nextCheckpoint {
			if err := s.writeCheckpoint(); err != nil {
				return err
			}
		}
	}
}

func (s *Simulation) fail(err error) error {
	s.log.Error("simulation failed", "err", err)
	return err
}

// TargetSteps returns a targeter observer ending the run once the
// engine step count reaches the given target.
func TargetSteps(target int) Observer {
	return ObserverFunc(func(s *Simulation) error {
		if s.Steps() >= target {
			return fmt.Errorf("reached target steps %d: %w", target, ErrEndOfRun)
		}
		return nil
	})
}

// noopBackend only counts steps; it stands in when no backend is
// given.
type noopBackend struct {
	steps int
}

func (b *noopBackend) RunPre(restart bool) error { return nil }

func (b *noopBackend) RunUntil(ctx context.Context, step int) error {
	b.steps = step
	return nil
}

func (b *noopBackend) Steps() int        { return b.steps }
func (b *noopBackend) SetSteps(step int) { b.steps = step }
