/*package model contains the particle, galaxy and universe types which make up
the simulation state, along with the routines which generate initial galaxy
populations.

A Universe owns its Galaxies and a Galaxy owns its Particles. Particles are
identified by a Ref, their position in the universe's galaxy sequence and the
owning galaxy's particle sequence; nothing outside of the owning Galaxy keeps
a pointer to a Particle beyond a single simulation tick.
*/
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/phil-mansfield/galaxy/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidParticle is returned (wrapped) whenever a particle with a
// non-positive mass or a non-finite position or velocity is rejected.
var ErrInvalidParticle = errors.New("invalid particle")

// Population identifies which component of a galaxy a particle was drawn
// from.
type Population uint8

const (
	Disk Population = iota
	Bulge
	Halo
)

func (p Population) String() string {
	switch p {
	case Disk:
		return "Disk"
	case Bulge:
		return "Bulge"
	case Halo:
		return "Halo"
	}
	return fmt.Sprintf("Population(%d)", uint8(p))
}

// Ref identifies a particle by the index of its galaxy within the universe
// and its index within that galaxy.
type Ref struct {
	Galaxy, Index int
}

// Particle is a single star (or dark matter tracer).
type Particle struct {
	Position, Velocity r3.Vec
	// Acceleration is the most recent acceleration written by a solver.
	Acceleration r3.Vec
	Mass float64

	// Visual payload. None of these are read by the solvers.
	Color [3]float32
	Magnitude, Size float32
	DoubleDrawing bool

	Population Population
	// Inactive particles are skipped by the solvers and by renderers.
	Active bool
}

// Validate returns an error wrapping ErrInvalidParticle if p cannot
// participate in force calculations.
func (p *Particle) Validate() error {
	if !(p.Mass > 0) || math.IsInf(p.Mass, 0) {
		return fmt.Errorf(
			"%w: mass must be positive and finite, but is %g",
			ErrInvalidParticle, p.Mass,
		)
	} else if !geom.Finite(p.Position) {
		return fmt.Errorf(
			"%w: position %v is not finite", ErrInvalidParticle, p.Position,
		)
	} else if !geom.Finite(p.Velocity) {
		return fmt.Errorf(
			"%w: velocity %v is not finite", ErrInvalidParticle, p.Velocity,
		)
	}
	return nil
}

// KineticEnergy returns m v^2 / 2.
func (p *Particle) KineticEnergy() float64 {
	return 0.5 * p.Mass * r3.Norm2(p.Velocity)
}
