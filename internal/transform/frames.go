// Package transform provides time-scale helpers and coordinate frame
// transformations for link-end states.
//
// The inertial frame used by the light-time solver is TEME (True Equator Mean
// Equinox), the frame SGP4 reports in. Ground stations are fixed in ECEF and
// rotated into TEME through GMST.
//
// Method: Simplified Vallado-style rotation using GMST only (TEME ↔ PEF ≈ ECEF).
// Polar motion and the equation of equinoxes are ignored (~50 m at most).
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cartesian is a position/velocity pair in SI units (m, m/s). The frame is
// implied by the function that produced it.
type Cartesian struct {
	Position r3.Vec
	Velocity r3.Vec
}

// KilometresToMetres scales a km, km/s state to SI.
func KilometresToMetres(c Cartesian) Cartesian {
	return Cartesian{
		Position: r3.Scale(1000.0, c.Position),
		Velocity: r3.Scale(1000.0, c.Velocity),
	}
}

// TEMEToECEFWithGMST rotates a TEME state into ECEF using a precomputed GMST
// angle (radians).
//
//	r_ECEF = R3(θ) * r_TEME
//	v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme Cartesian, gmst float64) Cartesian {
	pos := rotateZ(teme.Position, gmst)
	vel := rotateZ(teme.Velocity, gmst)
	return Cartesian{
		Position: pos,
		Velocity: r3.Sub(vel, earthRotation(pos)),
	}
}

// ECEFToTEMEWithGMST is the inverse of TEMEToECEFWithGMST.
//
//	r_TEME = R3(-θ) * r_ECEF
//	v_TEME = R3(-θ) * (v_ECEF + ω × r_ECEF)
func ECEFToTEMEWithGMST(ecef Cartesian, gmst float64) Cartesian {
	inertialVel := r3.Add(ecef.Velocity, earthRotation(ecef.Position))
	return Cartesian{
		Position: rotateZ(ecef.Position, -gmst),
		Velocity: rotateZ(inertialVel, -gmst),
	}
}

// rotateZ applies R3(θ), the frame rotation about +Z by θ.
func rotateZ(v r3.Vec, theta float64) r3.Vec {
	c := math.Cos(theta)
	s := math.Sin(theta)
	return r3.Vec{
		X: v.X*c + v.Y*s,
		Y: -v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// earthRotation returns ω × r for ω = [0, 0, OmegaEarth].
func earthRotation(r r3.Vec) r3.Vec {
	return r3.Vec{X: -OmegaEarth * r.Y, Y: OmegaEarth * r.X, Z: 0}
}

// IsFinite reports whether every component is neither NaN nor ±Inf.
func (c Cartesian) IsFinite() bool {
	for _, v := range [6]float64{
		c.Position.X, c.Position.Y, c.Position.Z,
		c.Velocity.X, c.Velocity.Y, c.Velocity.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
