package system

import (
	"math"
	"math/rand"
)

// NewLattice places n unit-mass particles on a simple cubic lattice at
// the given number density and draws velocities from a Maxwellian at
// the given temperature. The lattice spacing keeps particles off each
// other, so the configuration is safe to integrate directly.
func NewLattice(n int, density, temperature float64, rng *rand.Rand) *System {
	side := math.Cbrt(float64(n) / density)
	cells := int(math.Ceil(math.Cbrt(float64(n))))
	spacing := side / float64(cells)

	particles := make([]*Particle, 0, n)
	for ix := 0; ix < cells && len(particles) < n; ix++ {
		for iy := 0; iy < cells && len(particles) < n; iy++ {
			for iz := 0; iz < cells && len(particles) < n; iz++ {
				pos := Vec{
					(float64(ix) + 0.5) * spacing,
					(float64(iy) + 0.5) * spacing,
					(float64(iz) + 0.5) * spacing,
				}
				particles = append(particles, &Particle{
					Species:  "A",
					Mass:     1.0,
					Position: pos,
				})
			}
		}
	}

	s := New(particles, NewCubicCell(side))
	s.Maxwellian(temperature, rng)
	return s
}
