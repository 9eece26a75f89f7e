package galaxy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/galaxy/io"
	"github.com/phil-mansfield/galaxy/metrics"
	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/solver"
	"github.com/phil-mansfield/galaxy/tree"
)

func smallUniverse(t *testing.T) *model.Universe {
	u, err := model.NewUniverse(400)
	require.NoError(t, err)

	p := model.DefaultParams()
	p.DiskStars, p.BulgeStars, p.HaloStars = 300, 50, 50
	g, err := model.NewGalaxy("test", p)
	require.NoError(t, err)
	u.AddGalaxy(g)
	return u
}

func newSimulation(
	t *testing.T, mod func(con *io.SimulationConfig), opts ...Option,
) *Simulation {
	p := pool.New(2)
	t.Cleanup(p.Close)

	con := io.DefaultSimulationConfig()
	if mod != nil { mod(&con) }

	sim, err := New(smallUniverse(t), &con, p, opts...)
	require.NoError(t, err)
	return sim
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	p := pool.New(1)
	defer p.Close()

	con := io.DefaultSimulationConfig()
	con.Softening = 0
	_, err := New(smallUniverse(t), &con, p)
	assert.Error(t, err)
}

func TestInitSeedsCircularVelocities(t *testing.T) {
	// Euler's Initialize leaves the seeded velocities untouched.
	sim := newSimulation(t, func(con *io.SimulationConfig) {
		con.Integrator = solver.Euler.String()
	})
	require.NoError(t, sim.Init())
	assert.Error(t, sim.Init(), "Init may only be called once")

	moving, disk := 0, 0
	sim.Universe().Each(func(_ model.Ref, p *model.Particle) {
		if p.Population != model.Disk { return }
		disk++

		v := math.Hypot(p.Velocity.X, p.Velocity.Y)
		if v == 0 { return }
		moving++

		rHat := r3.Unit(r3.Vec{ X: p.Position.X, Y: p.Position.Y })
		radial := r3.Dot(rHat, r3.Vec{ X: p.Velocity.X, Y: p.Velocity.Y })
		assert.InDelta(t, 0, radial/v, 1e-9)

		// Counter-clockwise about +z.
		assert.Greater(t, p.Position.X*p.Velocity.Y - p.Position.Y*p.Velocity.X, 0.0)
	})
	assert.Greater(t, moving, disk/2)
}

func TestStep(t *testing.T) {
	sim := newSimulation(t, nil)
	assert.Error(t, sim.Step(), "Step requires Init")

	require.NoError(t, sim.Init())
	before := sim.Universe().Particle(model.Ref{}).Position

	for i := 0; i < 3; i++ { require.NoError(t, sim.Step()) }

	d := sim.Diagnostics()
	assert.Equal(t, int64(3), d.Steps)
	assert.InDelta(t, 3*io.DefaultTimestep, d.Time, 1e-20)
	assert.Equal(t, solver.BarnesHut, d.Kind)
	assert.Equal(t, 400, d.Particles)
	assert.Equal(t, Paused, d.State)
	assert.InEpsilon(t, sim.units.Years(d.Time), d.TimeYears, 1e-12)

	after := sim.Universe().Particle(model.Ref{}).Position
	assert.NotEqual(t, before, after)
}

func TestTimestepControls(t *testing.T) {
	sim := newSimulation(t, nil)
	dt := sim.Timestep()

	assert.InEpsilon(t, dt*SpeedUpFactor, sim.SpeedUp(), 1e-12)
	assert.InEpsilon(t, dt*SpeedUpFactor*SlowDownFactor, sim.SlowDown(), 1e-12)
	assert.InEpsilon(t, dt*0.96, sim.Timestep(), 1e-12)
}

func TestRunStopsAfterSteps(t *testing.T) {
	sim := newSimulation(t, func(con *io.SimulationConfig) {
		con.Steps = 5
	}, StartRunning())
	require.NoError(t, sim.Init())

	require.NoError(t, sim.Run(context.Background()))
	assert.Equal(t, int64(5), sim.Diagnostics().Steps)
}

func TestStartPauseStop(t *testing.T) {
	sim := newSimulation(t, nil, WithIdleInterval(time.Millisecond))
	require.NoError(t, sim.Init())
	assert.False(t, sim.Started())

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), sim.Diagnostics().Steps, "paused runs idle")

	sim.Start()
	assert.True(t, sim.Started())
	assert.Eventually(t, func() bool {
		return sim.Diagnostics().Steps > 2
	}, 10*time.Second, time.Millisecond)

	sim.Pause()
	assert.Equal(t, Paused, sim.State())

	sim.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.True(t, errors.Is(sim.Step(), ErrStopped))
	sim.Start()
	assert.Equal(t, Stopped, sim.State(), "a stopped simulation stays stopped")
}

func TestRunCancel(t *testing.T) {
	sim := newSimulation(t, nil, StartRunning())
	require.NoError(t, sim.Init())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return sim.Diagnostics().Steps > 0
	}, 10*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func positions(u *model.Universe) []r3.Vec {
	var out []r3.Vec
	u.Each(func(_ model.Ref, p *model.Particle) {
		out = append(out, p.Position)
	})
	return out
}

func TestSelect(t *testing.T) {
	sim := newSimulation(t, nil)
	require.NoError(t, sim.Init())
	require.NoError(t, sim.Step())

	assert.NotEmpty(t, sim.TreeSnapshot())
	sim.WithTree(func(tr *tree.Tree) {
		assert.Equal(t, 400, tr.Len())
	})

	require.NoError(t, sim.Select(solver.Bruteforce))
	assert.Equal(t, solver.Bruteforce, sim.Solver())
	before := positions(sim.Universe())
	require.NoError(t, sim.Step())
	after := positions(sim.Universe())
	for i := range before {
		if before[i] == after[i] {
			t.Errorf("%d) Particle did not move on the first Bruteforce step", i)
		}
	}

	d := sim.Diagnostics()
	assert.Equal(t, solver.Bruteforce, d.Kind)
	assert.Equal(t, 400, d.Particles)
	assert.Nil(t, sim.TreeSnapshot())

	require.NoError(t, sim.Select(solver.BarnesHut))
	require.NoError(t, sim.Step())
	assert.Equal(t, int64(3), sim.Diagnostics().Steps)

	assert.Error(t, sim.Select(solver.Kind(7)))
}

func TestRecorder(t *testing.T) {
	rec := metrics.New()
	sim := newSimulation(t, nil, WithRecorder(rec))
	require.NoError(t, sim.Init())
	for i := 0; i < 3; i++ { require.NoError(t, sim.Step()) }

	expected := `
# HELP galaxy_steps_total Number of completed simulation steps.
# TYPE galaxy_steps_total counter
galaxy_steps_total 3
`
	err := testutil.GatherAndCompare(
		rec.Registry(), strings.NewReader(expected), "galaxy_steps_total",
	)
	assert.NoError(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Paused", Paused.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Stopped", Stopped.String())
}
