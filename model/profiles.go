package model

import (
	"math"

	"github.com/phil-mansfield/galaxy/integrate"
	"github.com/phil-mansfield/galaxy/interpolate"
	"gonum.org/v1/gonum/floats"
)

const (
	// haloCoreFraction is the ratio of a halo's core radius to its truncation
	// radius.
	haloCoreFraction = 0.125
	// haloSteps is the number of subintervals used by every halo integral.
	haloSteps = 512
	// haloTableLen is the number of radii in a halo's enclosed mass table.
	haloTableLen = 256
	// plummerMaxFraction truncates sampled Plummer radii to this fraction of
	// the total mass.
	plummerMaxFraction = 0.99
)

// HaloProfile is a truncated pseudo-isothermal sphere,
//
//	rho(r) = rho0 / (1 + (r/rc)^2),   r <= Radius,
//
// normalized so that the mass inside Radius is Mass.
type HaloProfile struct {
	Mass, Radius, CoreRadius float64

	rho0 float64
	rs, ms []float64
	// radius maps enclosed mass back onto radius.
	radius *interpolate.Linear
}

// NewHalo returns a halo with the given total mass and truncation radius.
func NewHalo(mass, radius float64) *HaloProfile {
	h := &HaloProfile{ Mass: mass, Radius: radius, CoreRadius: haloCoreFraction*radius }
	if mass <= 0 || radius <= 0 { return h }

	h.rho0 = 1
	h.rho0 = mass / integrate.Rect(0, radius, haloSteps, h.shellMass)

	h.rs = floats.Span(make([]float64, haloTableLen), 0, radius)
	h.ms = make([]float64, haloTableLen)
	integrate.Cumulative(h.rs, haloSteps/haloTableLen+1, h.shellMass, h.ms)
	h.radius = interpolate.NewLinear(h.ms, h.rs)
	return h
}

// Density returns the halo's density at radius r.
func (h *HaloProfile) Density(r float64) float64 {
	if r > h.Radius || h.rho0 == 0 { return 0 }
	x := r / h.CoreRadius
	return h.rho0 / (1 + x*x)
}

// shellMass is dM/dr.
func (h *HaloProfile) shellMass(r float64) float64 {
	return 4 * math.Pi * r * r * h.Density(r)
}

// EnclosedMass returns the halo mass inside radius r.
func (h *HaloProfile) EnclosedMass(r float64) float64 {
	if r <= 0 || h.rho0 == 0 { return 0 }
	if r >= h.Radius { return h.Mass }
	return integrate.Rect(0, r, haloSteps, h.shellMass)
}

// Potential returns the gravitational potential of the halo at radius r,
//
//	Phi(r) = -G M(<r) / r - G Int_r^R 4 pi r' rho(r') dr'.
func (h *HaloProfile) Potential(r, G float64) float64 {
	if h.rho0 == 0 { return 0 }
	if r >= h.Radius { return -G * h.Mass / r }

	outer := integrate.Trap(r, h.Radius, haloSteps, func(x float64) float64 {
		return 4 * math.Pi * x * h.Density(x)
	})
	if r <= 0 { return -G * outer }
	return -G*h.EnclosedMass(r)/r - G*outer
}

// CircularVelocity returns sqrt(G M(<r) / r).
func (h *HaloProfile) CircularVelocity(r, G float64) float64 {
	if r <= 0 { return 0 }
	return math.Sqrt(G * h.EnclosedMass(r) / r)
}

// SampleRadius maps a uniform deviate u in [0, 1) onto a radius distributed
// according to the halo's mass profile.
func (h *HaloProfile) SampleRadius(u float64) float64 {
	if h.rho0 == 0 { return 0 }
	return h.radius.Eval(u * h.ms[len(h.ms)-1])
}

// Plummer is a Plummer sphere with scale radius Radius.
type Plummer struct {
	Mass, Radius float64
}

// EnclosedMass returns the mass inside radius r.
func (p Plummer) EnclosedMass(r float64) float64 {
	a2 := p.Radius * p.Radius
	return p.Mass * r * r * r / math.Pow(r*r+a2, 1.5)
}

// SampleRadius maps a uniform deviate u in [0, 1) onto a radius distributed
// according to the Plummer mass profile.
func (p Plummer) SampleRadius(u float64) float64 {
	u *= plummerMaxFraction
	if u <= 0 { return 0 }
	return p.Radius / math.Sqrt(math.Pow(u, -2.0/3) - 1)
}
