package solver

import (
	"fmt"
	"strings"
)

// IntegratorKind identifies a time integration scheme.
type IntegratorKind int

const (
	// Leapfrog is kick-drift-kick leapfrog. Velocities are kept half a step
	// ahead of positions.
	Leapfrog IntegratorKind = iota
	// Euler is semi-implicit (symplectic) Euler.
	Euler
)

func (k IntegratorKind) String() string {
	switch k {
	case Leapfrog:
		return "Leapfrog"
	case Euler:
		return "Euler"
	}
	return fmt.Sprintf("IntegratorKind(%d)", int(k))
}

// ParseIntegrator converts an integrator name, ignoring case, into an
// IntegratorKind.
func ParseIntegrator(s string) (IntegratorKind, error) {
	switch strings.ToLower(s) {
	case "leapfrog":
		return Leapfrog, nil
	case "euler":
		return Euler, nil
	}
	return 0, fmt.Errorf(
		"Unrecognized integrator '%s'. Must be Leapfrog or Euler.", s,
	)
}

// Stepper is the set of operations an Integrator composes into a step.
type Stepper interface {
	// Forces writes the acceleration of every active particle.
	Forces() error
	// Kick adds a*dt to every active velocity.
	Kick(dt float64)
	// Drift adds v*dt to every active position.
	Drift(dt float64)
}

// Integrator advances a Stepper through time.
type Integrator interface {
	Initialize(s Stepper, dt float64) error
	Step(s Stepper, dt float64) error
	Kind() IntegratorKind
}

// NewIntegrator returns the integrator of the given kind.
func NewIntegrator(k IntegratorKind) (Integrator, error) {
	switch k {
	case Leapfrog:
		return leapfrog{}, nil
	case Euler:
		return euler{}, nil
	}
	return nil, fmt.Errorf("Unrecognized integrator %v.", k)
}

type leapfrog struct{}

func (leapfrog) Kind() IntegratorKind { return Leapfrog }

// Initialize computes forces and advances velocities by half a step.
func (leapfrog) Initialize(s Stepper, dt float64) error {
	if err := s.Forces(); err != nil { return err }
	s.Kick(dt / 2)
	return nil
}

func (leapfrog) Step(s Stepper, dt float64) error {
	s.Drift(dt)
	if err := s.Forces(); err != nil { return err }
	s.Kick(dt)
	return nil
}

type euler struct{}

func (euler) Kind() IntegratorKind { return Euler }

func (euler) Initialize(s Stepper, dt float64) error { return nil }

func (euler) Step(s Stepper, dt float64) error {
	if err := s.Forces(); err != nil { return err }
	s.Kick(dt)
	s.Drift(dt)
	return nil
}
