package model

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// diskScaleFraction is the ratio of the exponential disk's scale length
	// to its truncation radius.
	diskScaleFraction = 0.25
	// doubleDrawMagnitude is the magnitude above which a star is drawn twice.
	doubleDrawMagnitude = 0.9
	maxDiskRejections = 1000
)

var populationColors = map[Population][3]float32{
	Disk:  {0.8, 0.85, 1.0},
	Bulge: {1.0, 0.9, 0.6},
	Halo:  {0.6, 0.3, 0.3},
}

// Params are the generation parameters of a galaxy. Lengths are in code
// length units and masses are in code mass units.
type Params struct {
	Center, Velocity r3.Vec

	DiskStars, BulgeStars, HaloStars int
	DiskRadius, BulgeRadius, HaloRadius float64
	DiskThickness float64

	// StarMass is the mass of a single disk star. BulgeMass and HaloMass are
	// shared evenly between the bulge and halo stars.
	StarMass, BulgeMass, HaloMass float64

	Seed uint64
}

// DefaultParams returns the parameters of a Milky Way-like galaxy in
// kiloparsecs and solar masses.
func DefaultParams() Params {
	return Params{
		DiskStars: 12000, BulgeStars: 2000, HaloStars: 4000,
		DiskRadius: 15, BulgeRadius: 1.5, HaloRadius: 40,
		DiskThickness: 0.3,
		StarMass: 5e6, BulgeMass: 1.5e10, HaloMass: 2e11,
		Seed: 1,
	}
}

// CheckInit returns an error describing the first invalid parameter of the
// galaxy with the given name.
func (p *Params) CheckInit(name string) error {
	counts := []struct {
		field string
		n int
	}{
		{"DiskStars", p.DiskStars},
		{"BulgeStars", p.BulgeStars},
		{"HaloStars", p.HaloStars},
	}
	for _, c := range counts {
		if c.n < 0 {
			return fmt.Errorf(
				"Galaxy '%s' must have a non-negative %s, but has %d.",
				name, c.field, c.n,
			)
		}
	}

	if p.DiskStars + p.BulgeStars + p.HaloStars == 0 {
		return fmt.Errorf("Galaxy '%s' has no stars.", name)
	}

	required := []struct {
		field string
		n int
		val float64
	}{
		{"DiskRadius", p.DiskStars, p.DiskRadius},
		{"StarMass", p.DiskStars, p.StarMass},
		{"BulgeRadius", p.BulgeStars, p.BulgeRadius},
		{"BulgeMass", p.BulgeStars, p.BulgeMass},
		{"HaloRadius", p.HaloStars, p.HaloRadius},
		{"HaloMass", p.HaloStars, p.HaloMass},
	}
	for _, r := range required {
		if r.n > 0 && !(r.val > 0) {
			return fmt.Errorf(
				"Galaxy '%s' must have a positive %s, but has %g.",
				name, r.field, r.val,
			)
		}
	}

	if p.DiskThickness < 0 {
		return fmt.Errorf(
			"Galaxy '%s' must have a non-negative DiskThickness, but has %g.",
			name, p.DiskThickness,
		)
	}

	return nil
}

// Galaxy is an ordered collection of particles along with the parameters
// used to generate them.
type Galaxy struct {
	Name string
	Params Params

	particles []Particle
	halo *HaloProfile
	bulge Plummer
}

// NewGalaxy generates the disk, bulge and halo populations described by p.
// Particles are ordered disk first, then bulge, then halo. Velocities are set
// to the galaxy's bulk velocity; call SetRadialVelocitiesFromForce once forces
// are known.
func NewGalaxy(name string, p Params) (*Galaxy, error) {
	if err := p.CheckInit(name); err != nil { return nil, err }

	g := newGalaxy(name, p)
	g.particles = make([]Particle, 0, p.DiskStars + p.BulgeStars + p.HaloStars)

	src := rand.NewSource(p.Seed)
	uni := distuv.Uniform{ Min: 0, Max: 1, Src: src }

	g.generateDisk(src, uni)
	g.generateSpheroid(Bulge, p.BulgeStars, g.bulge.SampleRadius, uni)
	g.generateSpheroid(Halo, p.HaloStars, g.halo.SampleRadius, uni)

	return g, nil
}

// FromParticles returns a galaxy which owns the given particles, such as those
// read from a catalog. Every particle is validated and marked active, and
// particles without a color are given their population's color.
func FromParticles(name string, p Params, ps []Particle) (*Galaxy, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("Galaxy '%s' has no particles.", name)
	}
	for i := range ps {
		if err := ps[i].Validate(); err != nil {
			return nil, fmt.Errorf("Galaxy '%s', particle %d: %w", name, i, err)
		}
		ps[i].Active = true
		if ps[i].Color == ([3]float32{}) {
			ps[i].Color = populationColors[ps[i].Population]
			ps[i].Magnitude, ps[i].Size = 1, 0.3
		}
	}

	g := newGalaxy(name, p)
	g.particles = ps
	return g, nil
}

func newGalaxy(name string, p Params) *Galaxy {
	return &Galaxy{
		Name: name, Params: p,
		halo: NewHalo(p.HaloMass, p.HaloRadius),
		bulge: Plummer{ Mass: p.BulgeMass, Radius: p.BulgeRadius },
	}
}

func (g *Galaxy) generateDisk(src rand.Source, uni distuv.Uniform) {
	p := &g.Params
	h := diskScaleFraction * p.DiskRadius
	exp := distuv.Exponential{ Rate: 1 / h, Src: src }
	norm := distuv.Normal{ Mu: 0, Sigma: p.DiskThickness, Src: src }

	for i := 0; i < p.DiskStars; i++ {
		// The radii of an exponential disk follow a Gamma(2, h) distribution.
		r := exp.Rand() + exp.Rand()
		for j := 0; r > p.DiskRadius && j < maxDiskRejections; j++ {
			r = exp.Rand() + exp.Rand()
		}
		if r > p.DiskRadius { r = uni.Rand() * p.DiskRadius }

		phi := 2 * math.Pi * uni.Rand()
		z := 0.0
		if p.DiskThickness > 0 { z = norm.Rand() }

		pos := r3.Vec{ X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z }
		g.add(Disk, pos, p.StarMass, uni)
	}
}

func (g *Galaxy) generateSpheroid(
	pop Population, n int, radius func(float64) float64, uni distuv.Uniform,
) {
	if n == 0 { return }

	mass := g.Params.BulgeMass / float64(n)
	if pop == Halo { mass = g.Params.HaloMass / float64(n) }

	for i := 0; i < n; i++ {
		r := radius(uni.Rand())
		cosTheta := 2*uni.Rand() - 1
		sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
		phi := 2 * math.Pi * uni.Rand()

		pos := r3.Vec{
			X: r * sinTheta * math.Cos(phi),
			Y: r * sinTheta * math.Sin(phi),
			Z: r * cosTheta,
		}
		g.add(pop, pos, mass, uni)
	}
}

func (g *Galaxy) add(pop Population, pos r3.Vec, mass float64, uni distuv.Uniform) {
	mag := float32(0.2 + 0.8*uni.Rand())
	g.particles = append(g.particles, Particle{
		Position: r3.Add(g.Params.Center, pos),
		Velocity: g.Params.Velocity,
		Mass: mass,
		Color: populationColors[pop],
		Magnitude: mag,
		Size: 0.1 + 0.2*mag,
		DoubleDrawing: mag > doubleDrawMagnitude,
		Population: pop,
		Active: true,
	})
}

// Particles returns the galaxy's particles. The returned slice aliases the
// galaxy's storage and must only be mutated by the simulation goroutine.
func (g *Galaxy) Particles() []Particle { return g.particles }

// Len returns the number of particles in the galaxy.
func (g *Galaxy) Len() int { return len(g.particles) }

// Halo returns the galaxy's analytic halo profile.
func (g *Galaxy) Halo() *HaloProfile { return g.halo }

// Bulge returns the galaxy's analytic bulge profile.
func (g *Galaxy) Bulge() Plummer { return g.bulge }

// TotalMass returns the summed mass of the galaxy's active particles.
func (g *Galaxy) TotalMass() float64 {
	m := 0.0
	for i := range g.particles {
		if g.particles[i].Active { m += g.particles[i].Mass }
	}
	return m
}

// SetRadialVelocitiesFromForce sets every active particle onto a circular
// orbit about the galaxy's center, using the in-plane component of the
// particle's current Acceleration: v = sqrt(R a_R). Orbits are
// counter-clockwise about +z and the galaxy's bulk velocity is added.
// Particles at the center, or which feel a net outward force, are given the
// bulk velocity alone.
func (g *Galaxy) SetRadialVelocitiesFromForce() {
	c, bulk := g.Params.Center, g.Params.Velocity

	for i := range g.particles {
		p := &g.particles[i]
		if !p.Active { continue }

		dx, dy := p.Position.X - c.X, p.Position.Y - c.Y
		r := math.Hypot(dx, dy)
		p.Velocity = bulk
		if r == 0 { continue }

		aR := -(p.Acceleration.X*dx + p.Acceleration.Y*dy) / r
		if aR <= 0 { continue }

		v := math.Sqrt(r * aR)
		p.Velocity = r3.Add(bulk, r3.Vec{ X: -dy / r * v, Y: dx / r * v })
	}
}
