package ephemeris

import (
	"github.com/jo11he/my-tudat/internal/transform"
)

// GroundStation is a site fixed on the WGS-84 ellipsoid. Its state is the
// ECEF position rotated into TEME at the requested time.
type GroundStation struct {
	Name     string
	Observer transform.ObserverPosition
}

// NewGroundStation creates a station from geodetic coordinates (degrees, metres).
func NewGroundStation(name string, latDeg, lonDeg, altM float64) *GroundStation {
	return &GroundStation{
		Name:     name,
		Observer: transform.NewObserverPosition(latDeg, lonDeg, altM),
	}
}

// StateAt returns the station's TEME state at solver time t.
func (g *GroundStation) StateAt(t float64) State {
	return fromCartesian(g.Observer.InertialState(transform.GMST(t)))
}
