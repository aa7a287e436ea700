// Package system models the physical system driven by a simulation
// backend: point particles in a periodic cell.
package system

import (
	"math"
	"math/rand"
)

// Cell is an orthorhombic simulation cell.
type Cell struct {
	Side Vec
}

func NewCubicCell(side float64) *Cell {
	return &Cell{Side: Vec{side, side, side}}
}

func (c *Cell) Volume() float64 {
	return c.Side[0] * c.Side[1] * c.Side[2]
}

// System is a collection of interacting particles, optionally enclosed
// in a cell. The potential energy is set by whatever computes the
// interaction (the backend); the system only stores it.
type System struct {
	Particles []*Particle
	Cell      *Cell

	potentialEnergy float64
}

func New(particles []*Particle, cell *Cell) *System {
	return &System{Particles: particles, Cell: cell}
}

func (s *System) Density() float64 {
	if s.Cell == nil || len(s.Particles) == 0 {
		return 0
	}
	return float64(len(s.Particles)) / s.Cell.Volume()
}

func (s *System) SetPotentialEnergy(u float64) { s.potentialEnergy = u }

func (s *System) PotentialEnergy() float64 { return s.potentialEnergy }

func (s *System) PotentialEnergyPerParticle() float64 {
	if len(s.Particles) == 0 {
		return 0
	}
	return s.potentialEnergy / float64(len(s.Particles))
}

func (s *System) KineticEnergy() float64 {
	total := 0.0
	for _, p := range s.Particles {
		total += p.KineticEnergy()
	}
	return total
}

func (s *System) KineticEnergyPerParticle() float64 {
	if len(s.Particles) == 0 {
		return 0
	}
	return s.KineticEnergy() / float64(len(s.Particles))
}

func (s *System) TotalEnergy() float64 {
	return s.potentialEnergy + s.KineticEnergy()
}

func (s *System) TotalEnergyPerParticle() float64 {
	if len(s.Particles) == 0 {
		return 0
	}
	return s.TotalEnergy() / float64(len(s.Particles))
}

// Temperature is the kinetic temperature with (N-1)*3 degrees of
// freedom to correct for missing translational invariance.
func (s *System) Temperature() float64 {
	n := len(s.Particles)
	if n < 2 {
		return 0
	}
	ndof := float64(n-1) * 3
	return 2.0 / ndof * s.KineticEnergy()
}

// MeanSquareDisplacement is computed with respect to the particles of
// the reference system, pairing them by index.
func (s *System) MeanSquareDisplacement(reference *System) float64 {
	n := len(s.Particles)
	if n == 0 || n != len(reference.Particles) {
		return 0
	}
	total := 0.0
	for i, p := range s.Particles {
		r := p.Distance(reference.Particles[i], s.Cell)
		total += r.Norm2()
	}
	return total / float64(n)
}

// Maxwellian resets all velocities to a Maxwell-Boltzmann distribution
// at the given temperature, with the center of mass fixed and the
// velocities rescaled so the kinetic temperature matches exactly.
func (s *System) Maxwellian(temperature float64, rng *rand.Rand) {
	for _, p := range s.Particles {
		p.Maxwellian(temperature, rng)
	}
	s.FixCM()
	old := s.Temperature()
	if old <= 0 {
		return
	}
	factor := math.Sqrt(temperature / old)
	for _, p := range s.Particles {
		p.Velocity = p.Velocity.Scale(factor)
	}
}

// FixCM removes the center of mass velocity.
func (s *System) FixCM() {
	if len(s.Particles) == 0 {
		return
	}
	var cm Vec
	mass := 0.0
	for _, p := range s.Particles {
		cm = cm.Add(p.Velocity.Scale(p.Mass))
		mass += p.Mass
	}
	cm = cm.Scale(1 / mass)
	for _, p := range s.Particles {
		p.Velocity = p.Velocity.Sub(cm)
	}
}

// Copy returns a deep copy; backends keep one as the reference
// configuration for displacement metrics.
func (s *System) Copy() *System {
	particles := make([]*Particle, len(s.Particles))
	for i, p := range s.Particles {
		q := *p
		particles[i] = &q
	}
	var cell *Cell
	if s.Cell != nil {
		c := *s.Cell
		cell = &c
	}
	out := New(particles, cell)
	out.potentialEnergy = s.potentialEnergy
	return out
}
