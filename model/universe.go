package model

import (
	"fmt"
)

// Universe is an ordered collection of galaxies inside a square domain of
// side length Size centered on the origin.
type Universe struct {
	Size float64
	galaxies []*Galaxy
}

// NewUniverse returns an empty universe.
func NewUniverse(size float64) (*Universe, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("Universe size must be positive, but is %g.", size)
	}
	return &Universe{ Size: size }, nil
}

// DefaultUniverse returns a universe containing a single galaxy generated
// from DefaultParams.
func DefaultUniverse(size float64) (*Universe, error) {
	u, err := NewUniverse(size)
	if err != nil { return nil, err }

	g, err := NewGalaxy("default", DefaultParams())
	if err != nil { return nil, err }
	u.AddGalaxy(g)

	return u, nil
}

// AddGalaxy appends g to the universe. Galaxies must all be added before the
// simulation starts.
func (u *Universe) AddGalaxy(g *Galaxy) {
	u.galaxies = append(u.galaxies, g)
}

// Galaxies returns the universe's galaxies.
func (u *Universe) Galaxies() []*Galaxy { return u.galaxies }

// Particle returns the particle identified by r.
func (u *Universe) Particle(r Ref) *Particle {
	return &u.galaxies[r.Galaxy].particles[r.Index]
}

// Each calls fn on every particle in the universe, active or not, in galaxy
// order.
func (u *Universe) Each(fn func(r Ref, p *Particle)) {
	for gi, g := range u.galaxies {
		for pi := range g.particles {
			fn(Ref{ gi, pi }, &g.particles[pi])
		}
	}
}

// Len returns the total number of particles.
func (u *Universe) Len() int {
	n := 0
	for _, g := range u.galaxies { n += g.Len() }
	return n
}

// ActiveLen returns the number of active particles.
func (u *Universe) ActiveLen() int {
	n := 0
	u.Each(func(_ Ref, p *Particle) {
		if p.Active { n++ }
	})
	return n
}

// KineticEnergy returns the total kinetic energy of the active particles.
func (u *Universe) KineticEnergy() float64 {
	e := 0.0
	u.Each(func(_ Ref, p *Particle) {
		if p.Active { e += p.KineticEnergy() }
	})
	return e
}

// SetRadialVelocitiesFromForce seeds circular velocities for every galaxy.
func (u *Universe) SetRadialVelocitiesFromForce() {
	for _, g := range u.galaxies { g.SetRadialVelocitiesFromForce() }
}
