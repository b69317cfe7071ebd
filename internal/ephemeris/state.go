// Package ephemeris supplies link-end states to the light-time solver.
//
// A Provider maps a solver time (seconds since J2000.0) to a six-component
// state in a shared quasi-inertial frame (TEME for every provider here), SI units.
// Providers are owned by the caller and shared by reference with calculators.
package ephemeris

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/transform"
)

// State is a position (m) and velocity (m/s): x, y, z, vx, vy, vz.
type State [6]float64

// NaNState is returned by providers that cannot produce a state.
var NaNState = State{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}

// NewState assembles a state from position and velocity vectors.
func NewState(pos, vel r3.Vec) State {
	return State{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z}
}

func fromCartesian(c transform.Cartesian) State {
	return NewState(c.Position, c.Velocity)
}

// Position returns the position components.
func (s State) Position() r3.Vec {
	return r3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// Velocity returns the velocity components.
func (s State) Velocity() r3.Vec {
	return r3.Vec{X: s[3], Y: s[4], Z: s[5]}
}

// IsFinite reports whether no component is NaN or ±Inf.
func (s State) IsFinite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Provider evaluates a link end's state at a solver time.
type Provider interface {
	StateAt(t float64) State
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(t float64) State

// StateAt calls f(t).
func (f ProviderFunc) StateAt(t float64) State {
	return f(t)
}

// Static returns a provider for a link end at rest.
func Static(pos r3.Vec) Provider {
	s := NewState(pos, r3.Vec{})
	return ProviderFunc(func(float64) State { return s })
}

// Linear returns a provider for uniform straight-line motion through
// initial at the given epoch.
func Linear(epoch float64, initial State) Provider {
	pos := initial.Position()
	vel := initial.Velocity()
	return ProviderFunc(func(t float64) State {
		return NewState(r3.Add(pos, r3.Scale(t-epoch, vel)), vel)
	})
}
