package io

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/solver"
	"github.com/phil-mansfield/galaxy/units"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ExampleConfigFile = `[Simulation]

#######################
# Required Parameters #
#######################

# None. Every parameter has a default value, and a file containing only
# [Galaxy] sections (or nothing at all) is a valid configuration file.

#######################
# Optional Parameters #
#######################

# Length of a single timestep in code units. With the default units, one code
# time unit is roughly 4.7e11 years, so the default step is about 24,000
# years. SpeedUp and SlowDown scale this by 1.2 and 0.8 while the simulation
# is running.
# Timestep = 5e-8

# Softening length in code (length) units. Must be positive: it keeps the
# force between two very close particles finite.
# Softening = 0.1

# Barnes-Hut opening angle. Smaller values are more accurate and slower. An
# opening angle of zero computes every pairwise force through the tree.
# OpeningAngle = 0.7

# Side length of the square, centered on the origin, which is covered by the
# Barnes-Hut tree. Particles outside of it do not exert any force.
# UniverseSize = 400

# Force solver. Either BarnesHut or Bruteforce.
# Solver = BarnesHut

# Integrator. Either Leapfrog or Euler.
# Integrator = Leapfrog

# Number of worker goroutines. 0 uses one per core.
# Threads = 0

# Number of steps to run before exiting. 0 runs until interrupted.
# Steps = 0

# If set, Prometheus metrics are served at http://MetricsAddress/metrics.
# MetricsAddress = localhost:9090

[Units]

# Physical size of the code units, in SI units. The defaults are a kiloparsec
# and a solar mass. The code-unit gravitational constant is always 1.
# LengthUnit = 3.0856775814913673e19
# MassUnit = 1.98847e30
# GravitationalConstant = 6.6743e-11

# Any number of galaxies can be added, each with a unique name. Positions and
# velocities are in code units.
[Galaxy "milky_way"]

# X = 0
# Y = 0
# Z = 0
# VX = 0
# VY = 0
# VZ = 0

# If all three counts are left unset, every count takes its default value.
# DiskStars = 12000
# BulgeStars = 2000
# HaloStars = 4000

# DiskRadius = 15
# BulgeRadius = 1.5
# HaloRadius = 40
# DiskThickness = 0.3 (0 gives a flat disk)

# StarMass is the mass of a single disk star. BulgeMass and HaloMass are
# totals which are shared between the stars of that population.
# StarMass = 5e6
# BulgeMass = 1.5e10
# HaloMass = 2e11

# Seed for the random number generator.
# Seed = 1

# An ASCII catalog of particles which replaces the generated ones. Each row
# holds x y z vx vy vz m, relative to the galaxy's position and velocity.
# Catalog = path/to/catalog.txt

# Values in a [default-galaxy] section apply to every [Galaxy] section which
# does not set them itself.
# [default-galaxy]
# DiskThickness = 0.5`
)

// DefaultTimestep is roughly 24,000 years in the default units.
const DefaultTimestep = 5e-8

type SimulationConfig struct {
	Timestep, Softening, OpeningAngle, UniverseSize float64
	Solver, Integrator string
	Threads, Steps int
	MetricsAddress string
}

type UnitsConfig struct {
	LengthUnit, MassUnit, GravitationalConstant float64
}

type GalaxyConfig struct {
	X, Y, Z, VX, VY, VZ float64
	DiskStars, BulgeStars, HaloStars int
	DiskRadius, BulgeRadius, HaloRadius, DiskThickness float64
	StarMass, BulgeMass, HaloMass float64
	Seed int64

	// Optional
	Catalog string

	// Optional, "undocumented"
	Name string
}

// ConfigWrapper is the top-level structure of a configuration file.
type ConfigWrapper struct {
	Simulation SimulationConfig
	Units UnitsConfig
	Galaxy map[string]*GalaxyConfig
	// Default_Galaxy holds the [default-galaxy] section, which gcfg copies
	// into each [Galaxy] section before reading it.
	Default_Galaxy GalaxyConfig
}

func DefaultSimulationConfig() SimulationConfig {
	sc := solver.DefaultConfig()
	return SimulationConfig{
		Timestep: DefaultTimestep,
		Softening: sc.Softening,
		OpeningAngle: sc.OpeningAngle,
		UniverseSize: sc.UniverseSize,
		Solver: solver.BarnesHut.String(),
		Integrator: sc.Integrator.String(),
	}
}

func DefaultUnitsConfig() UnitsConfig {
	s := units.Galactic()
	return UnitsConfig{
		LengthUnit: s.LengthUnit,
		MassUnit: s.MassUnit,
		GravitationalConstant: s.GravitationalConstant,
	}
}

func DefaultConfigWrapper() *ConfigWrapper {
	return &ConfigWrapper{
		Simulation: DefaultSimulationConfig(),
		Units: DefaultUnitsConfig(),
		Default_Galaxy: DefaultGalaxyConfig(),
	}
}

// DefaultGalaxyConfig returns the default shape of a galaxy. Star counts are
// left unset so that CheckInit can tell whether any of them were given.
func DefaultGalaxyConfig() GalaxyConfig {
	def := model.DefaultParams()
	return GalaxyConfig{
		DiskRadius: def.DiskRadius,
		BulgeRadius: def.BulgeRadius,
		HaloRadius: def.HaloRadius,
		DiskThickness: def.DiskThickness,
		StarMass: def.StarMass,
		BulgeMass: def.BulgeMass,
		HaloMass: def.HaloMass,
		Seed: int64(def.Seed),
	}
}

// ReadConfig reads and validates the given configuration file. Fields which
// are not set keep their default values.
func ReadConfig(fname string) (*ConfigWrapper, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil { return nil, err }
	if err := wrap.CheckInit(); err != nil { return nil, err }
	return wrap, nil
}

// ReadConfigString is ReadConfig for a configuration held in memory.
func ReadConfigString(s string) (*ConfigWrapper, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadStringInto(wrap, s); err != nil { return nil, err }
	if err := wrap.CheckInit(); err != nil { return nil, err }
	return wrap, nil
}

// CheckInit validates every section, returning all of the problems found at
// once.
func (wrap *ConfigWrapper) CheckInit() error {
	err := multierr.Combine(
		wrap.Simulation.CheckInit(), wrap.Units.CheckInit(),
	)
	for _, name := range wrap.GalaxyNames() {
		err = multierr.Append(err, wrap.Galaxy[name].CheckInit(name))
	}
	return err
}

// GalaxyNames returns the names of every [Galaxy] section in sorted order, so
// that galaxies are always added to a universe in the same order.
func (wrap *ConfigWrapper) GalaxyNames() []string {
	names := make([]string, 0, len(wrap.Galaxy))
	for name := range wrap.Galaxy { names = append(names, name) }
	sort.Strings(names)
	return names
}

func (con *SimulationConfig) ValidTimestep() bool {
	return con.Timestep > 0 && !math.IsInf(con.Timestep, 0)
}
func (con *SimulationConfig) ValidSoftening() bool {
	return con.Softening > 0 && !math.IsInf(con.Softening, 0)
}
func (con *SimulationConfig) ValidOpeningAngle() bool {
	return con.OpeningAngle >= 0 && !math.IsInf(con.OpeningAngle, 0)
}
func (con *SimulationConfig) ValidUniverseSize() bool {
	return con.UniverseSize > 0 && !math.IsInf(con.UniverseSize, 0)
}
func (con *SimulationConfig) ValidSolver() bool {
	_, err := solver.ParseKind(con.Solver)
	return err == nil
}
func (con *SimulationConfig) ValidIntegrator() bool {
	_, err := solver.ParseIntegrator(con.Integrator)
	return err == nil
}
func (con *SimulationConfig) ValidThreads() bool {
	return con.Threads >= 0
}
func (con *SimulationConfig) ValidSteps() bool {
	return con.Steps >= 0
}

func (con *SimulationConfig) CheckInit() error {
	var err error
	if !con.ValidTimestep() {
		err = multierr.Append(err, fmt.Errorf(
			"Timestep must be positive, but is %g.", con.Timestep,
		))
	}
	if !con.ValidSoftening() {
		err = multierr.Append(err, fmt.Errorf(
			"Softening must be positive, but is %g.", con.Softening,
		))
	}
	if !con.ValidOpeningAngle() {
		err = multierr.Append(err, fmt.Errorf(
			"OpeningAngle must be non-negative, but is %g.", con.OpeningAngle,
		))
	}
	if !con.ValidUniverseSize() {
		err = multierr.Append(err, fmt.Errorf(
			"UniverseSize must be positive, but is %g.", con.UniverseSize,
		))
	}
	if !con.ValidSolver() {
		err = multierr.Append(err, fmt.Errorf(
			"Unrecognized Solver '%s'. Must be BarnesHut or Bruteforce.",
			con.Solver,
		))
	}
	if !con.ValidIntegrator() {
		err = multierr.Append(err, fmt.Errorf(
			"Unrecognized Integrator '%s'. Must be Leapfrog or Euler.",
			con.Integrator,
		))
	}
	if !con.ValidThreads() {
		err = multierr.Append(err, fmt.Errorf(
			"Threads must be non-negative, but is %d.", con.Threads,
		))
	}
	if !con.ValidSteps() {
		err = multierr.Append(err, fmt.Errorf(
			"Steps must be non-negative, but is %d.", con.Steps,
		))
	}
	return err
}

// SolverKind returns the configured solver. It must only be called after
// CheckInit.
func (con *SimulationConfig) SolverKind() solver.Kind {
	k, _ := solver.ParseKind(con.Solver)
	return k
}

// SolverConfig returns the scalars needed by the solver package. It must only
// be called after CheckInit. The gravitational constant is always one in code
// units.
func (con *SimulationConfig) SolverConfig() solver.Config {
	integ, _ := solver.ParseIntegrator(con.Integrator)
	return solver.Config{
		Softening: con.Softening,
		OpeningAngle: con.OpeningAngle,
		UniverseSize: con.UniverseSize,
		G: units.Galactic().CodeG(),
		Integrator: integ,
	}
}

func (con *UnitsConfig) System() units.System {
	return units.System{
		LengthUnit: con.LengthUnit,
		MassUnit: con.MassUnit,
		GravitationalConstant: con.GravitationalConstant,
	}
}

func (con *UnitsConfig) CheckInit() error {
	return con.System().Validate()
}

// CheckInit fills in default values and validates the galaxy. If none of the
// star counts are set, all three take their default values. Zero-valued
// radii, masses and seeds are replaced by defaults. DiskThickness is kept as
// given, since a zero thickness is a flat disk.
func (gal *GalaxyConfig) CheckInit(name string) error {
	gal.Name = name
	def := model.DefaultParams()

	if gal.DiskStars == 0 && gal.BulgeStars == 0 && gal.HaloStars == 0 {
		gal.DiskStars, gal.BulgeStars = def.DiskStars, def.BulgeStars
		gal.HaloStars = def.HaloStars
	}
	setDefault(&gal.DiskRadius, def.DiskRadius)
	setDefault(&gal.BulgeRadius, def.BulgeRadius)
	setDefault(&gal.HaloRadius, def.HaloRadius)
	setDefault(&gal.StarMass, def.StarMass)
	setDefault(&gal.BulgeMass, def.BulgeMass)
	setDefault(&gal.HaloMass, def.HaloMass)
	if gal.Seed == 0 { gal.Seed = int64(def.Seed) }

	if gal.Seed < 0 {
		return fmt.Errorf(
			"Galaxy '%s' must have a non-negative Seed, but has %d.",
			name, gal.Seed,
		)
	}
	p := gal.Params()
	return p.CheckInit(name)
}

func setDefault(x *float64, val float64) {
	if *x == 0 { *x = val }
}

// Params converts the section into generation parameters.
func (gal *GalaxyConfig) Params() model.Params {
	return model.Params{
		Center: r3.Vec{ X: gal.X, Y: gal.Y, Z: gal.Z },
		Velocity: r3.Vec{ X: gal.VX, Y: gal.VY, Z: gal.VZ },
		DiskStars: gal.DiskStars,
		BulgeStars: gal.BulgeStars,
		HaloStars: gal.HaloStars,
		DiskRadius: gal.DiskRadius,
		BulgeRadius: gal.BulgeRadius,
		HaloRadius: gal.HaloRadius,
		DiskThickness: gal.DiskThickness,
		StarMass: gal.StarMass,
		BulgeMass: gal.BulgeMass,
		HaloMass: gal.HaloMass,
		Seed: uint64(gal.Seed),
	}
}
