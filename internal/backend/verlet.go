package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/system"
	"github.com/san-kum/mdsim/internal/trajectory"
)

const defaultCutoff = 2.5

// Verlet is a velocity-Verlet integrator for Lennard-Jones particles
// in a periodic cell. It owns the physical system, reports RMSD with
// respect to the initial configuration, and checkpoints to a JSON file
// next to the output path.
type Verlet struct {
	sys *system.System
	ref *system.System
	dt  float64
	rc  float64

	steps      int
	outputPath string
	traj       sim.Trajectory
	forces     []system.Vec
}

func NewVerlet(sys *system.System, dt float64) *Verlet {
	return &Verlet{sys: sys, dt: dt, rc: defaultCutoff}
}

func (b *Verlet) Version() string { return "verlet-lj 1.2" }

func (b *Verlet) Steps() int        { return b.steps }
func (b *Verlet) SetSteps(step int) { b.steps = step }

func (b *Verlet) System() *system.System { return b.sys }

func (b *Verlet) SetOutputPath(path string) {
	b.outputPath = path
	b.traj = trajectory.NewXYZ(path)
}

func (b *Verlet) Trajectory() sim.Trajectory { return b.traj }

func (b *Verlet) checkpointPath() string {
	if b.outputPath == "" {
		return ""
	}
	return b.outputPath + ".chk"
}

// RunPre loads the checkpoint on restart, keeps the current
// configuration as the displacement reference, and primes forces and
// potential energy.
func (b *Verlet) RunPre(restart bool) error {
	if restart {
		if err := b.readCheckpoint(); err != nil {
			return err
		}
	}
	if !restart || b.ref == nil {
		b.ref = b.sys.Copy()
	}
	b.forces, _ = b.computeForces()
	return nil
}

// RunUntil advances the system to the given absolute step, checking
// for cancellation periodically.
func (b *Verlet) RunUntil(ctx context.Context, step int) error {
	for b.steps < step {
		if b.steps%128 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		b.step()
		b.steps++
	}
	return nil
}

// step performs one velocity-Verlet integration step.
func (b *Verlet) step() {
	half := 0.5 * b.dt
	for i, p := range b.sys.Particles {
		p.Velocity = p.Velocity.Add(b.forces[i].Scale(half / p.Mass))
		p.Position = p.Position.Add(p.Velocity.Scale(b.dt))
	}
	var u float64
	b.forces, u = b.computeForces()
	for i, p := range b.sys.Particles {
		p.Velocity = p.Velocity.Add(b.forces[i].Scale(half / p.Mass))
	}
	b.sys.SetPotentialEnergy(u)
}

// computeForces evaluates Lennard-Jones forces and potential energy
// with the potential shifted to zero at the cutoff.
func (b *Verlet) computeForces() ([]system.Vec, float64) {
	n := len(b.sys.Particles)
	forces := make([]system.Vec, n)
	rc2 := b.rc * b.rc
	// Shift so u(rc) = 0.
	sr6 := 1.0 / (rc2 * rc2 * rc2)
	ushift := 4 * (sr6*sr6 - sr6)

	u := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := b.sys.Particles[i].Distance(b.sys.Particles[j], b.sys.Cell)
			r2 := r.Norm2()
			if r2 >= rc2 {
				continue
			}
			inv6 := 1.0 / (r2 * r2 * r2)
			u += 4*(inv6*inv6-inv6) - ushift
			f := 24 * (2*inv6*inv6 - inv6) / r2
			fv := r.Scale(f)
			forces[i] = forces[i].Add(fv)
			forces[j] = forces[j].Sub(fv)
		}
	}
	return forces, u
}

// RMSD is the root mean square displacement with respect to the
// configuration at the start of the run.
func (b *Verlet) RMSD() float64 {
	if b.ref == nil {
		return 0
	}
	return math.Sqrt(b.sys.MeanSquareDisplacement(b.ref))
}

type checkpoint struct {
	Steps      int          `json:"steps"`
	Side       system.Vec   `json:"side"`
	Species    []string     `json:"species"`
	Masses     []float64    `json:"masses"`
	Positions  []system.Vec `json:"positions"`
	Velocities []system.Vec `json:"velocities"`
}

// WriteCheckpoint persists the full configuration and step counter.
// Without an output path there is nowhere to write, so it is a no-op.
func (b *Verlet) WriteCheckpoint() error {
	path := b.checkpointPath()
	if path == "" {
		return nil
	}
	cp := checkpoint{Steps: b.steps}
	if b.sys.Cell != nil {
		cp.Side = b.sys.Cell.Side
	}
	for _, p := range b.sys.Particles {
		cp.Species = append(cp.Species, p.Species)
		cp.Masses = append(cp.Masses, p.Mass)
		cp.Positions = append(cp.Positions, p.Position)
		cp.Velocities = append(cp.Velocities, p.Velocity)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *Verlet) readCheckpoint() error {
	path := b.checkpointPath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Nothing to resume from; start from the current configuration.
		return nil
	}
	if err != nil {
		return err
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	particles := make([]*system.Particle, len(cp.Positions))
	for i := range cp.Positions {
		particles[i] = &system.Particle{
			Species:  cp.Species[i],
			Mass:     cp.Masses[i],
			Position: cp.Positions[i],
			Velocity: cp.Velocities[i],
		}
	}
	var cell *system.Cell
	if cp.Side != (system.Vec{}) {
		cell = &system.Cell{Side: cp.Side}
	}
	b.sys = system.New(particles, cell)
	b.steps = cp.Steps
	return nil
}
