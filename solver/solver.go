/*package solver computes gravitational accelerations for the particles of a
model.Universe and integrates their orbits.

Two force solvers are provided: Bruteforce, which sums every pair directly,
and BarnesHut, which approximates distant groups of particles with a
quadtree. Both hand their per-particle work to a shared pool.Pool and both
are driven by the same Integrator.
*/
package solver

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/tree"
)

// Kind identifies a force solver.
type Kind int

const (
	BarnesHut Kind = iota
	Bruteforce
)

func (k Kind) String() string {
	switch k {
	case BarnesHut:
		return "BarnesHut"
	case Bruteforce:
		return "Bruteforce"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a solver name, ignoring case, into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "barneshut", "barnes-hut":
		return BarnesHut, nil
	case "bruteforce", "brute-force":
		return Bruteforce, nil
	}
	return 0, fmt.Errorf(
		"Unrecognized solver '%s'. Must be BarnesHut or Bruteforce.", s,
	)
}

// Solver computes forces on, and advances, the active particles of a
// universe. Solve may be called repeatedly from a single goroutine;
// Diagnostics may be called from any goroutine.
type Solver interface {
	// Initialize prepares the integrator for steps of size dt without
	// advancing the simulation.
	Initialize(dt float64) error
	// SolveForces writes the current acceleration of every active particle
	// without moving anything.
	SolveForces() error
	// Solve advances every active particle by dt.
	Solve(dt float64) error
	Diagnostics() Diagnostics
	Kind() Kind
}

// Config holds the scalars shared by every solver.
type Config struct {
	Softening float64
	OpeningAngle float64
	// UniverseSize is the side length of the square, centered on the origin,
	// covered by the Barnes-Hut tree.
	UniverseSize float64
	// G is the gravitational constant in code units.
	G float64
	Integrator IntegratorKind
}

// DefaultConfig returns the configuration used when nothing else is
// specified.
func DefaultConfig() Config {
	return Config{
		Softening: 0.1,
		OpeningAngle: tree.DefaultOpeningAngle,
		UniverseSize: 400,
		G: 1,
		Integrator: Leapfrog,
	}
}

// Validate returns an error if any field of c is unusable.
func (c *Config) Validate() error {
	switch {
	case !(c.Softening > 0) || math.IsInf(c.Softening, 0):
		return fmt.Errorf(
			"Softening must be positive and finite, but is %g.", c.Softening,
		)
	case !(c.OpeningAngle >= 0):
		return fmt.Errorf(
			"OpeningAngle must be non-negative, but is %g.", c.OpeningAngle,
		)
	case !(c.UniverseSize > 0) || math.IsInf(c.UniverseSize, 0):
		return fmt.Errorf(
			"UniverseSize must be positive and finite, but is %g.",
			c.UniverseSize,
		)
	case !(c.G > 0):
		return fmt.Errorf("G must be positive, but is %g.", c.G)
	}
	return nil
}

// Diagnostics describes the most recent force calculation.
type Diagnostics struct {
	Kind Kind
	// Particles is the number of active particles.
	Particles int
	// BuildTime is the time spent building the tree. It is always zero for
	// Bruteforce.
	BuildTime time.Duration
	// SolveTime is the time spent evaluating forces.
	SolveTime time.Duration
	// Nodes is the number of reachable tree nodes.
	Nodes int
	// Dropped and Outside count tree insertions which were dropped for
	// exceeding tree.MaxLevel or ignored for lying outside of the domain.
	Dropped, Outside int
}

// New returns the solver of the given kind.
func New(
	kind Kind, u *model.Universe, p *pool.Pool, c Config,
) (Solver, error) {
	switch kind {
	case BarnesHut:
		return NewBarnesHut(u, p, c)
	case Bruteforce:
		return NewBruteforce(u, p, c)
	}
	return nil, fmt.Errorf("Unrecognized solver %v.", kind)
}

// base is the state shared by both solvers: the active particle list and the
// integrator.
type base struct {
	u *model.Universe
	p *pool.Pool
	con Config
	integ Integrator

	refs []model.Ref
	ps []*model.Particle
}

func newBase(u *model.Universe, p *pool.Pool, c Config) (base, error) {
	if err := c.Validate(); err != nil { return base{}, err }
	integ, err := NewIntegrator(c.Integrator)
	if err != nil { return base{}, err }
	return base{ u: u, p: p, con: c, integ: integ }, nil
}

// collect refreshes the list of active particles.
func (b *base) collect() {
	b.refs, b.ps = b.refs[:0], b.ps[:0]
	b.u.Each(func(r model.Ref, p *model.Particle) {
		if !p.Active { return }
		b.refs = append(b.refs, r)
		b.ps = append(b.ps, p)
	})
}

// Kick adds a*dt to the velocity of every active particle.
func (b *base) Kick(dt float64) {
	ps := b.ps
	b.p.Run(len(ps), func(lo, hi int) {
		for _, p := range ps[lo:hi] {
			p.Velocity.X += p.Acceleration.X * dt
			p.Velocity.Y += p.Acceleration.Y * dt
			p.Velocity.Z += p.Acceleration.Z * dt
		}
	})
}

// Drift adds v*dt to the position of every active particle.
func (b *base) Drift(dt float64) {
	ps := b.ps
	b.p.Run(len(ps), func(lo, hi int) {
		for _, p := range ps[lo:hi] {
			p.Position.X += p.Velocity.X * dt
			p.Position.Y += p.Velocity.Y * dt
			p.Position.Z += p.Velocity.Z * dt
		}
	})
}
