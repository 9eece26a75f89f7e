/*package galaxy runs Barnes-Hut simulations of interacting galaxies.

A Simulation owns a model.Universe, one solver of each kind and the state
shared with whatever is driving or displaying it: the run state, the
timestep and the active solver. Step and Run must only be called from a
single goroutine; every other method may be called from any goroutine.
*/
package galaxy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/phil-mansfield/galaxy/geom"
	"github.com/phil-mansfield/galaxy/io"
	"github.com/phil-mansfield/galaxy/metrics"
	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/solver"
	"github.com/phil-mansfield/galaxy/tree"
	"github.com/phil-mansfield/galaxy/units"
)

const (
	SpeedUpFactor = 1.2
	SlowDownFactor = 0.8

	defaultLogInterval = 5 * time.Second
	defaultIdleInterval = 50 * time.Millisecond
)

// ErrStopped is returned by Step once the simulation has been stopped.
var ErrStopped = errors.New("simulation stopped")

// State is the run state of a Simulation.
type State int32

const (
	Paused State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Paused:
		return "Paused"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Simulation struct {
	u *model.Universe
	units units.System
	solvers [2]solver.Solver
	maxSteps int64

	active atomic.Int32
	state atomic.Int32
	timestep, elapsed atomic.Float64
	steps atomic.Int64

	stepMu sync.Mutex
	initialized bool

	wake chan struct{}
	idle time.Duration
	progress rate.Sometimes
	rec *metrics.Recorder
	ms runtime.MemStats
}

// Diagnostics describes the state of a simulation after its most recent
// step.
type Diagnostics struct {
	solver.Diagnostics
	State State
	// Timestep and Time are in code units.
	Timestep, Time float64
	// TimestepYears and TimeYears are Timestep and Time in years.
	TimestepYears, TimeYears float64
	Steps int64
}

type Option func(sim *Simulation)

// WithRecorder records metrics for every step.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(sim *Simulation) { sim.rec = rec }
}

// WithUnits sets the unit system used when reporting times.
func WithUnits(sys units.System) Option {
	return func(sim *Simulation) { sim.units = sys }
}

// WithLogInterval sets the minimum time between progress log lines.
func WithLogInterval(d time.Duration) Option {
	return func(sim *Simulation) { sim.progress.Interval = d }
}

// WithIdleInterval sets how often a paused Run checks its state.
func WithIdleInterval(d time.Duration) Option {
	return func(sim *Simulation) { sim.idle = d }
}

// StartRunning returns a Simulation which is running from the start, rather
// than waiting for a call to Start.
func StartRunning() Option {
	return func(sim *Simulation) { sim.state.Store(int32(Running)) }
}

// New creates a paused simulation of u. con must have passed CheckInit. Both
// solvers share p.
func New(
	u *model.Universe, con *io.SimulationConfig, p *pool.Pool, opts ...Option,
) (*Simulation, error) {
	if err := con.CheckInit(); err != nil { return nil, err }

	sim := &Simulation{
		u: u,
		units: units.Galactic(),
		maxSteps: int64(con.Steps),
		wake: make(chan struct{}, 1),
		idle: defaultIdleInterval,
		progress: rate.Sometimes{ Interval: defaultLogInterval },
	}
	sim.timestep.Store(con.Timestep)
	sim.active.Store(int32(con.SolverKind()))
	for _, opt := range opts { opt(sim) }

	sc := con.SolverConfig()
	for _, kind := range []solver.Kind{ solver.BarnesHut, solver.Bruteforce } {
		s, err := solver.New(kind, u, p, sc)
		if err != nil { return nil, err }
		sim.solvers[kind] = s
	}

	return sim, nil
}

// Universe returns the simulated universe. Particles must only be modified
// by the goroutine calling Step.
func (sim *Simulation) Universe() *model.Universe { return sim.u }

func (sim *Simulation) current() solver.Solver {
	return sim.solvers[sim.active.Load()]
}

// Init computes initial forces with the active solver, puts every particle
// onto a circular orbit about its galaxy, and prepares the integrator. It
// must be called once before the first Step.
func (sim *Simulation) Init() error {
	sim.stepMu.Lock()
	defer sim.stepMu.Unlock()

	if sim.initialized {
		return fmt.Errorf("Simulation has already been initialized.")
	}

	s := sim.current()
	if err := s.SolveForces(); err != nil { return err }
	sim.u.SetRadialVelocitiesFromForce()
	if err := s.Initialize(sim.timestep.Load()); err != nil { return err }

	sim.initialized = true
	klog.Infof(
		"Initialized %d particles in %d galaxies with the %v solver.",
		sim.u.ActiveLen(), len(sim.u.Galaxies()), s.Kind(),
	)
	return nil
}

// Step advances the simulation by a single timestep, regardless of whether
// it is paused.
func (sim *Simulation) Step() error {
	sim.stepMu.Lock()
	defer sim.stepMu.Unlock()

	if State(sim.state.Load()) == Stopped {
		return ErrStopped
	} else if !sim.initialized {
		return fmt.Errorf("Simulation must be initialized before stepping.")
	}

	s, dt := sim.current(), sim.timestep.Load()
	if err := s.Solve(dt); err != nil { return err }

	t := sim.elapsed.Add(dt)
	steps := sim.steps.Inc()
	d := s.Diagnostics()

	if sim.rec != nil { sim.rec.ObserveStep(d, dt, t) }
	sim.progress.Do(func() { sim.logProgress(d, steps, dt, t) })
	return nil
}

func (sim *Simulation) logProgress(d solver.Diagnostics, steps int64, dt, t float64) {
	e := sim.u.KineticEnergy()
	if sim.rec != nil { sim.rec.ObserveKineticEnergy(e) }

	runtime.ReadMemStats(&sim.ms)
	klog.Infof(
		"Step %d: t = %.4g Myr, dt = %.3g yr, %v build %v solve %v, "+
			"KE = %.5g, Alloc: %d MB, Sys: %d MB",
		steps, sim.units.MillionYears(t), sim.units.Years(dt),
		d.Kind, d.BuildTime, d.SolveTime, e,
		sim.ms.Alloc >> 20, sim.ms.Sys >> 20,
	)
	klog.V(2).Infof(
		"Step %d: %d particles, %d nodes, %d dropped, %d outside.",
		steps, d.Particles, d.Nodes, d.Dropped, d.Outside,
	)
}

// Run steps the simulation until it is stopped, ctx is cancelled, or the
// configured number of steps has been taken. While paused, Run idles. Run
// returns ctx.Err() if ctx was cancelled and nil otherwise.
func (sim *Simulation) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil { return err }
		if sim.maxSteps > 0 && sim.steps.Load() >= sim.maxSteps {
			klog.Infof("Finished all %d steps.", sim.maxSteps)
			return nil
		}

		switch State(sim.state.Load()) {
		case Stopped:
			return nil
		case Paused:
			sim.wait(ctx)
			continue
		}

		if err := sim.Step(); errors.Is(err, ErrStopped) {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (sim *Simulation) wait(ctx context.Context) {
	timer := time.NewTimer(sim.idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-sim.wake:
	case <-timer.C:
	}
}

func (sim *Simulation) signal() {
	select {
	case sim.wake <- struct{}{}:
	default:
	}
}

// Start resumes a paused simulation.
func (sim *Simulation) Start() {
	if sim.state.CompareAndSwap(int32(Paused), int32(Running)) {
		sim.signal()
	}
}

// Pause pauses a running simulation. The step in progress, if any, finishes.
func (sim *Simulation) Pause() {
	sim.state.CompareAndSwap(int32(Running), int32(Paused))
}

// Stop permanently stops the simulation. Run returns after the step in
// progress finishes.
func (sim *Simulation) Stop() {
	sim.state.Store(int32(Stopped))
	sim.signal()
}

// State returns the current run state.
func (sim *Simulation) State() State { return State(sim.state.Load()) }

// Started returns true if the simulation is running.
func (sim *Simulation) Started() bool { return sim.State() == Running }

// Timestep returns the current timestep in code units.
func (sim *Simulation) Timestep() float64 { return sim.timestep.Load() }

// SpeedUp multiplies the timestep by SpeedUpFactor and returns the new value.
func (sim *Simulation) SpeedUp() float64 {
	return sim.scaleTimestep(SpeedUpFactor)
}

// SlowDown multiplies the timestep by SlowDownFactor and returns the new
// value.
func (sim *Simulation) SlowDown() float64 {
	return sim.scaleTimestep(SlowDownFactor)
}

func (sim *Simulation) scaleTimestep(f float64) float64 {
	for {
		old := sim.timestep.Load()
		if sim.timestep.CompareAndSwap(old, old*f) { return old*f }
	}
}

// Select changes the solver used from the next step onwards. The integrator
// state is carried by the particles, so the new solver is not re-initialized.
func (sim *Simulation) Select(kind solver.Kind) error {
	if kind != solver.BarnesHut && kind != solver.Bruteforce {
		return fmt.Errorf("Unrecognized solver %v.", kind)
	}
	if old := solver.Kind(sim.active.Swap(int32(kind))); old != kind {
		klog.Infof("Switched from the %v solver to the %v solver.", old, kind)
	}
	return nil
}

// Solver returns the kind of the active solver.
func (sim *Simulation) Solver() solver.Kind {
	return solver.Kind(sim.active.Load())
}

func (sim *Simulation) Diagnostics() Diagnostics {
	dt, t := sim.timestep.Load(), sim.elapsed.Load()
	return Diagnostics{
		Diagnostics: sim.current().Diagnostics(),
		State: sim.State(),
		Timestep: dt,
		Time: t,
		TimestepYears: sim.units.Years(dt),
		TimeYears: sim.units.Years(t),
		Steps: sim.steps.Load(),
	}
}

func (sim *Simulation) barnesHut() *solver.BarnesHutSolver {
	return sim.solvers[solver.BarnesHut].(*solver.BarnesHutSolver)
}

// TreeSnapshot returns the node bounds of the most recently built tree, or
// nil if the Barnes-Hut solver is not active.
func (sim *Simulation) TreeSnapshot() []geom.Square {
	if sim.Solver() != solver.BarnesHut { return nil }
	return sim.barnesHut().Snapshot()
}

// WithTree calls fn with the most recently built tree while holding its read
// lock.
func (sim *Simulation) WithTree(fn func(t *tree.Tree)) {
	sim.barnesHut().WithTree(fn)
}
