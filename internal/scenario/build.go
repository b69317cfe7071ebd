package scenario

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/ephemeris"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/observation"
	"github.com/jo11he/my-tudat/internal/tle"
	"github.com/jo11he/my-tudat/internal/transform"
)

// sgp4CacheSize bounds the states memoised per TLE link end.
const sgp4CacheSize = 4096

// Build returns a fresh chain and its ancillary settings. Providers are
// created on the first call and shared by later calls, so chains built for
// different goroutines reuse the same SGP4 caches.
func (s *Scenario) Build(logger *slog.Logger) (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	providers, err := s.Providers(logger)
	if err != nil {
		return nil, nil, err
	}
	if len(providers) < 2 {
		return nil, nil, fmt.Errorf("%w: %d link ends, need at least 2", ErrInvalidScenario, len(providers))
	}

	legs := make([]*lighttime.Calculator, len(providers)-1)
	for i := range legs {
		opts := []lighttime.Option{lighttime.WithLogger(logger)}
		if s.PropagationSpeed > 0 {
			opts = append(opts, lighttime.WithPropagationSpeed(s.PropagationSpeed))
		}
		if i < len(s.Legs) {
			legOpts, err := s.Legs[i].options(logger)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: legs[%d]: %w", ErrInvalidScenario, i, err)
			}
			opts = append(opts, legOpts...)
		}
		legs[i] = lighttime.NewCalculator(providers[i], providers[i+1], opts...)
	}

	chain, err := lighttime.NewMultiLegCalculator(legs)
	if err != nil {
		return nil, nil, err
	}

	ancillary := lighttime.NewAncillarySettings()
	if s.RetransmissionDelays != nil {
		ancillary.SetDoubleVector(lighttime.RetransmissionDelays, s.RetransmissionDelays)
	}
	return chain, ancillary, nil
}

// Providers returns one ephemeris provider per link end, in chain order.
func (s *Scenario) Providers(logger *slog.Logger) ([]ephemeris.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.providers != nil {
		return s.providers, nil
	}

	providers := make([]ephemeris.Provider, len(s.LinkEnds))
	for i, le := range s.LinkEnds {
		p, err := le.provider(s.dir, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: link_ends[%d] (%s): %w", ErrInvalidScenario, i, le.Name, err)
		}
		providers[i] = p
	}
	s.providers = providers
	return providers, nil
}

// LinkEndIndexByName finds a link end by name.
func (s *Scenario) LinkEndIndexByName(name string) (int, bool) {
	for i, le := range s.LinkEnds {
		if le.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Viability returns the elevation mask of a ground-station link end.
func (s *Scenario) Viability(index int, logger *slog.Logger) (observation.ElevationViability, error) {
	if index < 0 || index >= len(s.LinkEnds) || s.LinkEnds[index].GroundStation == nil {
		return observation.ElevationViability{}, fmt.Errorf("%w: link end %d is not a ground station", ErrInvalidScenario, index)
	}
	providers, err := s.Providers(logger)
	if err != nil {
		return observation.ElevationViability{}, err
	}
	return observation.ElevationViability{
		Station:         providers[index].(*ephemeris.GroundStation),
		MinElevationDeg: s.LinkEnds[index].GroundStation.MinElevationDeg,
	}, nil
}

func (le LinkEnd) provider(dir string, logger *slog.Logger) (ephemeris.Provider, error) {
	switch {
	case le.Static != nil:
		return ephemeris.Static(vec(le.Static.Position)), nil

	case le.Linear != nil:
		epoch := 0.0
		if le.Linear.Epoch != "" {
			t, err := time.Parse(time.RFC3339Nano, le.Linear.Epoch)
			if err != nil {
				return nil, err
			}
			epoch = transform.SecondsSinceJ2000(t)
		}
		return ephemeris.Linear(epoch, ephemeris.NewState(vec(le.Linear.Position), vec(le.Linear.Velocity))), nil

	case le.GroundStation != nil:
		gs := le.GroundStation
		return ephemeris.NewGroundStation(le.Name, gs.LatitudeDeg, gs.LongitudeDeg, gs.AltitudeM), nil

	case le.TLE != nil:
		entry, err := le.TLE.entry(dir)
		if err != nil {
			return nil, err
		}
		sgp4, err := ephemeris.NewSGP4(entry, logger)
		if err != nil {
			return nil, err
		}
		cached, err := ephemeris.NewCached(sgp4, sgp4CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return nil, fmt.Errorf("no ephemeris given")
}

func (spec *TLESpec) entry(dir string) (tle.TLEEntry, error) {
	if spec.File != "" {
		return loadTLEFile(resolve(dir, spec.File), spec.NORADID)
	}
	return tle.ParseLines(spec.Name, spec.Line1, spec.Line2)
}

func loadTLEFile(path string, noradID int) (tle.TLEEntry, error) {
	ds, err := tle.ParseFile(path, slog.Default())
	if err != nil {
		return tle.TLEEntry{}, err
	}
	entry, ok := ds.Find(noradID)
	if !ok {
		return tle.TLEEntry{}, fmt.Errorf("NORAD %d not found in %s", noradID, path)
	}
	return entry, nil
}

func (l Leg) options(logger *slog.Logger) ([]lighttime.Option, error) {
	criteriaOpts := []lighttime.CriteriaOption{
		lighttime.WithIterateCorrections(l.Criteria.IterateCorrections),
	}
	if l.Criteria.MaxIterations != nil {
		criteriaOpts = append(criteriaOpts, lighttime.WithMaxIterations(*l.Criteria.MaxIterations))
	}
	if l.Criteria.Tolerance != nil {
		criteriaOpts = append(criteriaOpts, lighttime.WithTolerance(*l.Criteria.Tolerance))
	}
	policy, err := lighttime.ParseFailurePolicy(l.Criteria.FailurePolicy)
	if err != nil {
		return nil, err
	}
	criteriaOpts = append(criteriaOpts, lighttime.WithFailurePolicy(policy))

	opts := []lighttime.Option{
		lighttime.WithCriteria(lighttime.NewConvergenceCriteria(criteriaOpts...)),
	}
	for _, c := range l.Corrections {
		seconds := c.Seconds
		opts = append(opts, lighttime.WithCorrections(lighttime.NewFunctionCorrection(c.Name,
			func(_, _ ephemeris.State, _, _ float64) float64 { return seconds }, logger)))
	}
	return opts, nil
}

func vec(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
