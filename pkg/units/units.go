// Package units carries the gravity constant and length unit used by a single
// computation run as an explicit value, rather than as ambient global state.
//
// The source this module was adapted from consulted a process-wide Units
// singleton from deep inside the propagator and motion code. That makes two
// runs with different unit systems unsafe to execute concurrently. Here every
// constructor that needs gravity takes a UnitSystem value instead.
package units

import "fmt"

// LengthUnit names the length unit a UnitSystem's quantities are expressed in.
type LengthUnit string

const (
	Meters LengthUnit = "m"
	Feet   LengthUnit = "ft"
)

// UnitSystem fixes gravity and a length unit label for the lifetime of a run.
// Zero value is invalid; use Metric or English, or New for a custom system.
type UnitSystem struct {
	Gravity float64 // acceleration of gravity, in Length/s^2
	Length  LengthUnit
}

// Metric is the standard SI unit system: gravity in m/s^2.
var Metric = UnitSystem{Gravity: 9.80665, Length: Meters}

// English is the standard imperial unit system: gravity in ft/s^2.
var English = UnitSystem{Gravity: 32.174, Length: Feet}

// New builds a UnitSystem from an explicit gravity value and length unit.
//
// Parameters:
//   - gravity: acceleration of gravity in Length/s^2, must be positive
//   - length: the length unit label the gravity value is expressed in
//
// Returns:
//   - UnitSystem: the constructed value
//   - error: non-nil if gravity is not positive
func New(gravity float64, length LengthUnit) (UnitSystem, error) {
	if gravity <= 0 {
		return UnitSystem{}, fmt.Errorf("units: gravity must be positive, got %g", gravity)
	}
	return UnitSystem{Gravity: gravity, Length: length}, nil
}

// Valid reports whether the unit system has been properly initialized.
func (u UnitSystem) Valid() bool {
	return u.Gravity > 0
}

func (u UnitSystem) String() string {
	return fmt.Sprintf("UnitSystem(g=%g %s/s^2)", u.Gravity, u.Length)
}
