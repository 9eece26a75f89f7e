package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func smallParams() Params {
	p := DefaultParams()
	p.DiskStars, p.BulgeStars, p.HaloStars = 300, 100, 200
	return p
}

func TestNewGalaxyPopulations(t *testing.T) {
	p := smallParams()
	p.Center = r3.Vec{ X: 10, Y: -5 }
	g, err := NewGalaxy("test", p)
	require.NoError(t, err)
	require.Equal(t, 600, g.Len())

	counts := map[Population]int{}
	for i, part := range g.Particles() {
		counts[part.Population]++
		require.NoError(t, part.Validate(), "particle %d", i)
		assert.True(t, part.Active)

		d := r3.Sub(part.Position, p.Center)
		switch part.Population {
		case Disk:
			assert.LessOrEqual(t, math.Hypot(d.X, d.Y), p.DiskRadius+1e-9)
			assert.Equal(t, p.StarMass, part.Mass)
		case Halo:
			assert.LessOrEqual(t, r3.Norm(d), p.HaloRadius+1e-9)
			assert.InEpsilon(t, p.HaloMass/200, part.Mass, 1e-12)
		case Bulge:
			assert.InEpsilon(t, p.BulgeMass/100, part.Mass, 1e-12)
		}
	}

	assert.Equal(t, 300, counts[Disk])
	assert.Equal(t, 100, counts[Bulge])
	assert.Equal(t, 200, counts[Halo])

	total := 300*p.StarMass + p.BulgeMass + p.HaloMass
	assert.InEpsilon(t, total, g.TotalMass(), 1e-9)
}

func TestNewGalaxyDeterministic(t *testing.T) {
	g1, err := NewGalaxy("a", smallParams())
	require.NoError(t, err)
	g2, err := NewGalaxy("b", smallParams())
	require.NoError(t, err)

	assert.Equal(t, g1.Particles(), g2.Particles())
}

func TestParamsCheckInit(t *testing.T) {
	table := []func(p *Params){
		func(p *Params) { p.DiskStars = -1 },
		func(p *Params) { p.DiskStars, p.BulgeStars, p.HaloStars = 0, 0, 0 },
		func(p *Params) { p.StarMass = 0 },
		func(p *Params) { p.DiskRadius = -1 },
		func(p *Params) { p.BulgeMass = math.NaN() },
		func(p *Params) { p.HaloRadius = 0 },
		func(p *Params) { p.DiskThickness = -0.1 },
	}

	for i, mod := range table {
		p := DefaultParams()
		mod(&p)
		if err := p.CheckInit("bad"); err == nil {
			t.Errorf("%d) Expected invalid parameters %+v to be rejected.", i, p)
		}
	}

	p := DefaultParams()
	p.HaloStars, p.HaloMass = 0, 0
	assert.NoError(t, p.CheckInit("no_halo"))
}

func TestParticleValidate(t *testing.T) {
	good := Particle{ Mass: 1, Position: r3.Vec{ X: 1 } }
	require.NoError(t, good.Validate())

	bad := []Particle{
		{ Mass: 0 },
		{ Mass: -1 },
		{ Mass: math.Inf(1) },
		{ Mass: 1, Position: r3.Vec{ Y: math.NaN() } },
		{ Mass: 1, Velocity: r3.Vec{ Z: math.Inf(-1) } },
	}
	for i := range bad {
		err := bad[i].Validate()
		if !errors.Is(err, ErrInvalidParticle) {
			t.Errorf("%d) Expected ErrInvalidParticle, got %v", i, err)
		}
	}
}

func TestFromParticles(t *testing.T) {
	ps := []Particle{
		{ Mass: 1, Position: r3.Vec{ X: 1 } },
		{ Mass: 2, Position: r3.Vec{ X: -1 } },
	}
	g, err := FromParticles("cat", Params{}, ps)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.True(t, g.Particles()[1].Active)

	_, err = FromParticles("empty", Params{}, nil)
	assert.Error(t, err)

	_, err = FromParticles("bad", Params{}, []Particle{{ Mass: -1 }})
	assert.True(t, errors.Is(err, ErrInvalidParticle))
}

func TestSetRadialVelocitiesFromForce(t *testing.T) {
	ps := []Particle{
		// Pulled toward the center: circular orbit.
		{ Mass: 1, Position: r3.Vec{ X: 4 }, Acceleration: r3.Vec{ X: -1 } },
		// Pushed outward: bulk velocity only.
		{ Mass: 1, Position: r3.Vec{ Y: 2 }, Acceleration: r3.Vec{ Y: 3 } },
		// At the center.
		{ Mass: 1 },
	}
	bulk := r3.Vec{ X: 0.5 }
	g, err := FromParticles("g", Params{ Velocity: bulk }, ps)
	require.NoError(t, err)

	g.SetRadialVelocitiesFromForce()
	got := g.Particles()

	assert.InDelta(t, 0.5, got[0].Velocity.X, 1e-12)
	assert.InDelta(t, 2, got[0].Velocity.Y, 1e-12)
	assert.Equal(t, bulk, got[1].Velocity)
	assert.Equal(t, bulk, got[2].Velocity)
}

func TestHaloProfile(t *testing.T) {
	h := NewHalo(1e11, 40)
	G := 1.0

	assert.InEpsilon(t, 1e11, h.EnclosedMass(40), 1e-9)
	assert.InEpsilon(t, 1e11, h.EnclosedMass(100), 1e-12)
	assert.Equal(t, 0.0, h.EnclosedMass(0))
	assert.Less(t, h.EnclosedMass(10), h.EnclosedMass(20))

	// The potential is continuous at the truncation radius and increasing.
	assert.InEpsilon(t, -G*1e11/40, h.Potential(40-1e-9, G), 1e-6)
	assert.Less(t, h.Potential(1, G), h.Potential(10, G))
	assert.Less(t, h.Potential(0, G), h.Potential(1, G))

	// The sampled radii follow the mass profile.
	half := h.SampleRadius(0.5)
	assert.InEpsilon(t, 0.5e11, h.EnclosedMass(half), 0.02)
	assert.Equal(t, 0.0, h.SampleRadius(0))

	empty := NewHalo(0, 10)
	assert.Equal(t, 0.0, empty.Potential(1, G))
	assert.Equal(t, 0.0, empty.CircularVelocity(1, G))
}

func TestGalaxyHaloProfile(t *testing.T) {
	p := smallParams()
	g, err := NewGalaxy("test", p)
	require.NoError(t, err)

	var h *HaloProfile = g.Halo()
	require.NotNil(t, h)
	assert.Equal(t, p.HaloMass, h.Mass)
	assert.Equal(t, p.HaloRadius, h.Radius)

	n := 0
	for _, part := range g.Particles() {
		if part.Population == Halo { n++ }
	}
	assert.Equal(t, p.HaloStars, n)
	assert.Equal(t, "Halo", Halo.String())
}

func TestPlummer(t *testing.T) {
	p := Plummer{ Mass: 10, Radius: 2 }
	for _, u := range []float64{0.1, 0.5, 0.9} {
		r := p.SampleRadius(u)
		assert.InEpsilon(t, u*plummerMaxFraction*10, p.EnclosedMass(r), 1e-9)
	}
}

func TestUniverse(t *testing.T) {
	_, err := NewUniverse(0)
	assert.Error(t, err)

	u, err := NewUniverse(100)
	require.NoError(t, err)

	g1, _ := FromParticles("a", Params{}, []Particle{
		{ Mass: 1, Velocity: r3.Vec{ X: 2 } },
	})
	g2, _ := FromParticles("b", Params{}, []Particle{
		{ Mass: 2 }, { Mass: 3, Velocity: r3.Vec{ Y: 1 } },
	})
	u.AddGalaxy(g1)
	u.AddGalaxy(g2)

	assert.Equal(t, 3, u.Len())
	assert.Equal(t, 3.0, u.Particle(Ref{ 1, 1 }).Mass)

	u.Particle(Ref{ 1, 0 }).Active = false
	assert.Equal(t, 2, u.ActiveLen())
	assert.InDelta(t, 2+1.5, u.KineticEnergy(), 1e-12)

	refs := []Ref{}
	u.Each(func(r Ref, _ *Particle) { refs = append(refs, r) })
	assert.Equal(t, []Ref{{0, 0}, {1, 0}, {1, 1}}, refs)
}
