// Package observation turns light-time solutions into observables: one-way
// and n-way range, angular position, and an elevation-mask viability check.
package observation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/ephemeris"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/transform"
)

// Range is a range observable (m) with the link-end times and states it was
// computed from, in chain order.
type Range struct {
	Value     float64
	LightTime float64
	Times     []float64
	States    []ephemeris.State
	Legs      []lighttime.LegSolution
}

// Angles is the direction of the transmitter as seen from the receiver.
type Angles struct {
	RightAscension float64 // radians, (-π, π]
	Declination    float64 // radians
	Times          []float64
	States         []ephemeris.State
}

func checkEndpoint(role lighttime.LinkEndType) error {
	if role != lighttime.Transmitter && role != lighttime.Receiver {
		return fmt.Errorf("%w: %v cannot be the reference of a one-leg observable", lighttime.ErrConfiguration, role)
	}
	return nil
}

// OneWayRange is the propagation speed times the light time of one leg, with
// t the time at link end role.
func OneWayRange(calc *lighttime.Calculator, t float64, role lighttime.LinkEndType) (Range, error) {
	if err := checkEndpoint(role); err != nil {
		return Range{}, err
	}
	sol, err := calc.Solve(t, role == lighttime.Receiver)
	if err != nil {
		return Range{}, err
	}
	return Range{
		Value:     calc.PropagationSpeed() * sol.LightTime,
		LightTime: sol.LightTime,
		Times:     []float64{sol.Transmitter.Time, sol.Receiver.Time},
		States:    []ephemeris.State{sol.Transmitter.State, sol.Receiver.State},
		Legs:      []lighttime.LegSolution{sol},
	}, nil
}

// NWayRange is the propagation speed of the first leg times the total chain
// light time, retransmission delays included. Delays are read from ancillary.
func NWayRange(chain *lighttime.MultiLegCalculator, t float64, role lighttime.LinkEndType, ancillary *lighttime.AncillarySettings) (Range, error) {
	sol, err := chain.SolveForLinkEnd(t, role, ancillary)
	if err != nil {
		return Range{}, err
	}
	speed := chain.Legs()[0].PropagationSpeed()
	return Range{
		Value:     speed * sol.LightTime,
		LightTime: sol.LightTime,
		Times:     sol.Times,
		States:    sol.States,
		Legs:      sol.Legs,
	}, nil
}

// AngularPosition returns right ascension and declination of the vector from
// the receiver at reception to the transmitter at transmission.
func AngularPosition(calc *lighttime.Calculator, t float64, role lighttime.LinkEndType) (Angles, error) {
	if err := checkEndpoint(role); err != nil {
		return Angles{}, err
	}
	sol, err := calc.Solve(t, role == lighttime.Receiver)
	if err != nil {
		return Angles{}, err
	}
	v := r3.Sub(sol.Transmitter.State.Position(), sol.Receiver.State.Position())
	norm := r3.Norm(v)
	if norm == 0 {
		return Angles{}, fmt.Errorf("%w: coincident link ends", lighttime.ErrInvalidState)
	}
	return Angles{
		RightAscension: math.Atan2(v.Y, v.X),
		Declination:    math.Asin(v.Z / norm),
		Times:          []float64{sol.Transmitter.Time, sol.Receiver.Time},
		States:         []ephemeris.State{sol.Transmitter.State, sol.Receiver.State},
	}, nil
}

// ElevationViability rejects links whose far end is below an elevation mask
// at a ground station.
type ElevationViability struct {
	Station         *ephemeris.GroundStation
	MinElevationDeg float64
}

// LookAngles returns the direction and range from the station at its
// solver time stationTime to a target TEME state.
func (v ElevationViability) LookAngles(stationTime float64, target ephemeris.State) transform.LookAngles {
	ecef := transform.TEMEToECEFWithGMST(
		transform.Cartesian{Position: target.Position(), Velocity: target.Velocity()},
		transform.GMST(stationTime),
	)
	return transform.ECEFToLookAngles(v.Station.Observer, ecef.Position)
}

// Viable reports whether the target is at or above the mask.
func (v ElevationViability) Viable(stationTime float64, target ephemeris.State) bool {
	return v.LookAngles(stationTime, target).ElevationDeg >= v.MinElevationDeg
}

// CheckLink applies the mask to a solved observable: the station sits at
// index station of times/states and looks at the link end at index target.
func (v ElevationViability) CheckLink(times []float64, states []ephemeris.State, station, target int) (bool, error) {
	n := min(len(times), len(states))
	if station < 0 || station >= n || target < 0 || target >= n {
		return false, fmt.Errorf("%w: link end index out of range (%d, %d) for %d entries",
			lighttime.ErrConfiguration, station, target, n)
	}
	return v.Viable(times[station], states[target]), nil
}
