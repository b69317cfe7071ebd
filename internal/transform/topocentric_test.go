package transform

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewObserverPosition_ECEFMagnitude(t *testing.T) {
	// Equator, prime meridian: WGS-84 equatorial radius.
	obs := NewObserverPosition(0, 0, 0)
	if mag := r3.Norm(obs.ECEF); math.Abs(mag-6378137.0) > 1.0 {
		t.Errorf("equatorial observer ECEF magnitude = %.1f m, want ~6378137 m", mag)
	}

	// North pole: polar radius.
	pole := NewObserverPosition(90, 0, 0)
	if mag := r3.Norm(pole.ECEF); math.Abs(mag-6356752.3) > 1.0 {
		t.Errorf("polar observer ECEF magnitude = %.1f m, want ~6356752 m", mag)
	}
}

func TestNewObserverPosition_Altitude(t *testing.T) {
	obs0 := NewObserverPosition(0, 0, 0)
	obs100 := NewObserverPosition(0, 0, 100)

	diff := r3.Norm(obs100.ECEF) - r3.Norm(obs0.ECEF)
	if math.Abs(diff-100.0) > 0.01 {
		t.Errorf("altitude difference = %.3f m, want 100 m", diff)
	}
}

func TestObserverInertialState(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	// At GMST = 0 the frames coincide; velocity is the surface rotation speed.
	st := obs.InertialState(0)
	if math.Abs(st.Position.X-6378137.0) > 1e-6 {
		t.Errorf("X = %.3f, want 6378137", st.Position.X)
	}
	wantVY := OmegaEarth * 6378137.0
	if math.Abs(st.Velocity.Y-wantVY) > 1e-9 {
		t.Errorf("VY = %.6f m/s, want %.6f m/s", st.Velocity.Y, wantVY)
	}

	// A quarter turn later the site sits on the TEME +Y axis.
	st = obs.InertialState(math.Pi / 2)
	if math.Abs(st.Position.Y-6378137.0) > 1e-6 || math.Abs(st.Position.X) > 1e-6 {
		t.Errorf("position after quarter turn = %+v, want on +Y", st.Position)
	}
}

func TestECEFToLookAngles_DirectlyOverhead(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	sat := r3.Add(obs.ECEF, r3.Vec{X: 400000.0})
	la := ECEFToLookAngles(obs, sat)

	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeM-400000.0) > 1.0 {
		t.Errorf("overhead range = %.2f m, want ~400000", la.RangeM)
	}
}

func TestECEFToLookAngles_AzimuthDirections(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	tests := []struct {
		name   string
		target ObserverPosition
		wantAz float64
	}{
		{"north", NewObserverPosition(10, 0, 400000), 0},
		{"east", NewObserverPosition(0, 10, 400000), 90},
		{"south", NewObserverPosition(-10, 0, 400000), 180},
		{"west", NewObserverPosition(0, -10, 400000), 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := ECEFToLookAngles(obs, tt.target.ECEF)
			diff := math.Abs(la.AzimuthDeg - tt.wantAz)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 30 {
				t.Errorf("azimuth = %.2f deg, want near %.0f", la.AzimuthDeg, tt.wantAz)
			}
		})
	}
}

func TestECEFToLookAngles_BelowHorizon(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)
	// Antipodal target is always below the horizon.
	la := ECEFToLookAngles(obs, r3.Vec{X: -7000000.0})
	if la.ElevationDeg > -80 {
		t.Errorf("antipodal elevation = %.2f deg, want ~-90", la.ElevationDeg)
	}
}
