package ephemeris

import (
	"log/slog"

	"github.com/jo11he/my-tudat/internal/propagation"
	"github.com/jo11he/my-tudat/internal/tle"
)

// SGP4 is a provider backed by a two-line element set.
// Propagation failures are logged and reported as NaNState.
type SGP4 struct {
	prop   *propagation.SGP4Propagator
	name   string
	logger *slog.Logger
}

// NewSGP4 initialises SGP4 for a parsed TLE entry.
func NewSGP4(entry tle.TLEEntry, logger *slog.Logger) (*SGP4, error) {
	prop, err := propagation.NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SGP4{prop: prop, name: entry.Name, logger: logger}, nil
}

// StateAt returns the TEME state at solver time t.
func (s *SGP4) StateAt(t float64) State {
	c, err := s.prop.PropagateAt(t)
	if err != nil {
		s.logger.Warn("sgp4 state unavailable",
			"norad_id", s.prop.NORADID(),
			"name", s.name,
			"epoch", t,
			"error", err,
		)
		return NaNState
	}
	return fromCartesian(c)
}
