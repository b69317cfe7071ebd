package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// J2000Epoch is the reference instant for solver times. Times are treated as
// UTC seconds; leap seconds are not applied.
var J2000Epoch = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// SecondsSinceJ2000 converts a wall-clock time to solver time
// (seconds since J2000.0).
func SecondsSinceJ2000(t time.Time) float64 {
	t = t.UTC()
	whole := t.Unix() - J2000Epoch.Unix()
	return float64(whole) + float64(t.Nanosecond())/1e9
}

// TimeFromJ2000Seconds converts solver time back to a UTC time.Time,
// rounded to the nearest nanosecond.
func TimeFromJ2000Seconds(s float64) time.Time {
	whole := math.Floor(s)
	nanos := math.Round((s - whole) * 1e9)
	return J2000Epoch.Add(time.Duration(whole) * time.Second).Add(time.Duration(nanos))
}

// JulianDate returns the Julian Date of a solver time.
func JulianDate(secondsSinceJ2000 float64) float64 {
	return j2000 + secondsSinceJ2000/86400.0
}

// GMST returns Greenwich Mean Sidereal Time in radians for a solver time
// (seconds since J2000.0, UT1 ≈ UTC).
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
func GMST(secondsSinceJ2000 float64) float64 {
	tUT1 := secondsSinceJ2000 / 86400.0 / 36525.0

	// 876600h = 3155760000 s.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// GMSTAt is GMST for a wall-clock time.
func GMSTAt(t time.Time) float64 {
	return GMST(SecondsSinceJ2000(t))
}
