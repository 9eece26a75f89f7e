/*package units describes the unit system used by the simulation.

Lengths are measured in LengthUnit meters, masses in MassUnit kilograms, and
the time unit is derived so that the gravitational constant is exactly one in
code units:

	T = sqrt(L^3 / (M * G))
*/
package units

import (
	"fmt"
	"math"
)

const (
	// KiloParsec is one kiloparsec in meters.
	KiloParsec = 3.0856775814913673e19
	// SolarMass is one solar mass in kilograms.
	SolarMass = 1.98847e30
	// G is the gravitational constant in SI units.
	G = 6.6743e-11

	secondsPerYear = 3600 * 24 * 365
)

// System is a gravitational unit system.
type System struct {
	LengthUnit, MassUnit float64 // meters, kilograms
	GravitationalConstant float64 // SI
}

// Galactic returns the default system: kiloparsecs and solar masses.
func Galactic() System {
	return System{
		LengthUnit: KiloParsec,
		MassUnit: SolarMass,
		GravitationalConstant: G,
	}
}

// Validate returns an error if any of the system's scales is not positive.
func (s System) Validate() error {
	if !(s.LengthUnit > 0) {
		return fmt.Errorf("LengthUnit must be positive, but is %g.", s.LengthUnit)
	} else if !(s.MassUnit > 0) {
		return fmt.Errorf("MassUnit must be positive, but is %g.", s.MassUnit)
	} else if !(s.GravitationalConstant > 0) {
		return fmt.Errorf(
			"GravitationalConstant must be positive, but is %g.",
			s.GravitationalConstant,
		)
	}
	return nil
}

// CodeG is the gravitational constant expressed in code units. It is one by
// construction of the time unit.
func (s System) CodeG() float64 { return 1 }

// TimeUnit returns the length of one code time unit in seconds.
func (s System) TimeUnit() float64 {
	l := s.LengthUnit
	return math.Sqrt(l * l * l / (s.MassUnit * s.GravitationalConstant))
}

// Years converts a code time interval to years.
func (s System) Years(t float64) float64 {
	return t * s.TimeUnit() / secondsPerYear
}

// MillionYears converts a code time interval to millions of years.
func (s System) MillionYears(t float64) float64 {
	return s.Years(t) / 1e6
}

// Velocity converts a code velocity to kilometers per second.
func (s System) Velocity(v float64) float64 {
	return v * s.LengthUnit / s.TimeUnit() / 1e3
}
