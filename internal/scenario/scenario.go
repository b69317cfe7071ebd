// Package scenario reads link-chain definitions from YAML and builds the
// matching light-time calculators.
//
// A scenario lists its link ends in transmit order, one solver setting per
// leg, optional retransmission delays, and the link end whose time is given
// when solving. Files are validated as a whole: every problem found is
// reported, joined into a single error wrapping ErrInvalidScenario.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jo11he/my-tudat/internal/ephemeris"
)

// ErrInvalidScenario wraps every load or validation failure.
var ErrInvalidScenario = errors.New("scenario: invalid scenario")

// Scenario is a parsed, validated chain definition.
type Scenario struct {
	PropagationSpeed     float64   `yaml:"propagation_speed" validate:"omitempty,gt=0,finite"`
	Reference            string    `yaml:"reference"`
	RetransmissionDelays []float64 `yaml:"retransmission_delays" validate:"omitempty,dive,gte=0,finite"`
	LinkEnds             []LinkEnd `yaml:"link_ends" validate:"required,min=2,max=6,dive"`
	Legs                 []Leg     `yaml:"legs" validate:"dive"`

	// dir resolves relative TLE file paths.
	dir string

	mu        sync.Mutex
	providers []ephemeris.Provider
}

// LinkEnd is one station, spacecraft, or fixed point. Exactly one of the
// ephemeris blocks must be set.
type LinkEnd struct {
	Name          string             `yaml:"name" validate:"required"`
	Static        *StaticSpec        `yaml:"static"`
	Linear        *LinearSpec        `yaml:"linear"`
	GroundStation *GroundStationSpec `yaml:"ground_station"`
	TLE           *TLESpec           `yaml:"tle"`
}

// StaticSpec is a fixed TEME position in metres.
type StaticSpec struct {
	Position []float64 `yaml:"position" validate:"len=3,dive,finite"`
}

// LinearSpec is uniform motion through Position at Epoch (RFC 3339, default
// J2000.0).
type LinearSpec struct {
	Epoch    string    `yaml:"epoch"`
	Position []float64 `yaml:"position" validate:"len=3,dive,finite"`
	Velocity []float64 `yaml:"velocity" validate:"len=3,dive,finite"`
}

// GroundStationSpec is a geodetic site on WGS-84.
type GroundStationSpec struct {
	LatitudeDeg     float64 `yaml:"latitude_deg" validate:"gte=-90,lte=90"`
	LongitudeDeg    float64 `yaml:"longitude_deg" validate:"gte=-180,lte=360"`
	AltitudeM       float64 `yaml:"altitude_m" validate:"gte=-500,lte=10000"`
	MinElevationDeg float64 `yaml:"min_elevation_deg" validate:"gte=-90,lte=90"`
}

// TLESpec gives element lines inline, or a file and catalog number.
type TLESpec struct {
	Name    string `yaml:"name"`
	Line1   string `yaml:"line1" validate:"required_without=File"`
	Line2   string `yaml:"line2" validate:"required_without=File"`
	File    string `yaml:"file"`
	NORADID int    `yaml:"norad_id" validate:"required_with=File,gte=0"`
}

// Leg holds the solver settings of one leg.
type Leg struct {
	Criteria    CriteriaSpec     `yaml:"criteria"`
	Corrections []CorrectionSpec `yaml:"corrections" validate:"dive"`
}

// CriteriaSpec mirrors lighttime.ConvergenceCriteria; unset fields keep the
// library defaults.
type CriteriaSpec struct {
	IterateCorrections bool     `yaml:"iterate_corrections"`
	MaxIterations      *int     `yaml:"max_iterations" validate:"omitempty,gte=0"`
	Tolerance          *float64 `yaml:"tolerance" validate:"omitempty,gte=0"`
	FailurePolicy      string   `yaml:"failure_policy" validate:"omitempty,oneof=accept warn fail accept_silently warn_and_accept throw"`
}

// CorrectionSpec is a constant delay in seconds, e.g. a calibrated hardware
// delay.
type CorrectionSpec struct {
	Name    string  `yaml:"name" validate:"required"`
	Seconds float64 `yaml:"seconds" validate:"finite"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return Parse(bytes.NewReader(data), filepath.Dir(path))
}

// Parse decodes YAML from r. Unknown keys are rejected. dir is the base for
// relative TLE file paths.
func Parse(r io.Reader, dir string) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	s := &Scenario{}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("%w: decoding yaml: %w", ErrInvalidScenario, err)
	}
	s.dir = dir
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
