package system

import (
	"math"
	"math/rand"
)

type Vec [3]float64

func (v Vec) Add(w Vec) Vec { return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec) Sub(w Vec) Vec { return Vec{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec) Scale(f float64) Vec {
	return Vec{v[0] * f, v[1] * f, v[2] * f}
}

func (v Vec) Dot(w Vec) float64 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }
func (v Vec) Norm2() float64    { return v.Dot(v) }

// Particle is a point particle with species, mass, position and velocity.
type Particle struct {
	Species  string
	Mass     float64
	Position Vec
	Velocity Vec
}

func NewParticle(species string, mass float64, pos Vec) *Particle {
	return &Particle{Species: species, Mass: mass, Position: pos}
}

// Distance returns the separation vector to q, folded by the minimum
// image convention when a cell is given.
func (p *Particle) Distance(q *Particle, cell *Cell) Vec {
	r := p.Position.Sub(q.Position)
	if cell != nil {
		for i := 0; i < 3; i++ {
			r[i] -= cell.Side[i] * math.Round(r[i]/cell.Side[i])
		}
	}
	return r
}

func (p *Particle) KineticEnergy() float64 {
	return 0.5 * p.Mass * p.Velocity.Norm2()
}

// Maxwellian draws the particle velocity from a Maxwell-Boltzmann
// distribution at temperature T.
func (p *Particle) Maxwellian(temperature float64, rng *rand.Rand) {
	sigma := math.Sqrt(temperature / p.Mass)
	for i := 0; i < 3; i++ {
		p.Velocity[i] = sigma * rng.NormFloat64()
	}
}
