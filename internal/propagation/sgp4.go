// Package propagation wraps SGP4 so TLE-defined spacecraft can serve as
// link ends.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output. Propagate() takes the Satellite by value so
// SGP4 error codes are not visible to the caller; failures are detected by
// checking the output for NaN/Inf and unreasonable position magnitudes.
//
// The library only accepts whole-second epochs. PropagateAt evaluates the two
// neighbouring whole seconds and joins them with a cubic Hermite segment,
// which keeps positions continuous in time for the light-time iteration.

// SGP4Propagator wraps the go-satellite library for a single satellite.
// Safe for concurrent use.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
// Returns an error if the TLE cannot be parsed or the SGP4 model fails to initialize.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

// NORADID returns the catalogue number the propagator was built for.
func (p *SGP4Propagator) NORADID() int {
	return p.noradID
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate computes the TEME state at a whole-second UTC time, in km and km/s.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.Cartesian, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.Cartesian{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	// Between ~6200 km and ~50000 km from the geocentre.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.Cartesian{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}

	return transform.Cartesian{
		Position: r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z},
	}, nil
}

// PropagateAt computes the TEME state at an arbitrary solver time
// (seconds since J2000.0), in metres and m/s.
func (p *SGP4Propagator) PropagateAt(secondsSinceJ2000 float64) (transform.Cartesian, error) {
	whole := math.Floor(secondsSinceJ2000)
	frac := secondsSinceJ2000 - whole

	t0 := transform.TimeFromJ2000Seconds(whole)
	s0, err := p.Propagate(t0)
	if err != nil {
		return transform.Cartesian{}, err
	}
	if frac == 0 {
		return transform.KilometresToMetres(s0), nil
	}

	s1, err := p.Propagate(t0.Add(time.Second))
	if err != nil {
		return transform.Cartesian{}, err
	}
	return transform.KilometresToMetres(hermite(s0, s1, frac)), nil
}

// hermite interpolates across a one-second segment at fraction s in [0, 1).
func hermite(a, b transform.Cartesian, s float64) transform.Cartesian {
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	// Derivatives with respect to time; the segment length is one second.
	d00 := 6*s2 - 6*s
	d10 := 3*s2 - 4*s + 1
	d01 := -6*s2 + 6*s
	d11 := 3*s2 - 2*s

	pos := r3.Add(
		r3.Add(r3.Scale(h00, a.Position), r3.Scale(h10, a.Velocity)),
		r3.Add(r3.Scale(h01, b.Position), r3.Scale(h11, b.Velocity)),
	)
	vel := r3.Add(
		r3.Add(r3.Scale(d00, a.Position), r3.Scale(d10, a.Velocity)),
		r3.Add(r3.Scale(d01, b.Position), r3.Scale(d11, b.Velocity)),
	)
	return transform.Cartesian{Position: pos, Velocity: vel}
}
