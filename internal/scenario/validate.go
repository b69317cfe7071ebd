package scenario

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/tle"
)

// scenarioValidate checks struct tags. Initialized in init() with the
// custom "finite" rule.
var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
	if err := scenarioValidate.RegisterValidation("finite", validateFinite); err != nil {
		panic(fmt.Sprintf("scenario: register finite validation: %v", err))
	}
}

// validateFinite rejects NaN and ±Inf floats. Other kinds pass.
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
		return true
	}
	v := f.Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate runs the tag rules and the cross-field rules. All failures are
// collected; the result wraps ErrInvalidScenario.
func (s *Scenario) Validate() error {
	var errs error

	if err := scenarioValidate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = multierr.Append(errs, fieldError(fe))
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	n := len(s.LinkEnds)
	for i, le := range s.LinkEnds {
		errs = multierr.Append(errs, le.validate(i, s.dir))
	}

	if len(s.Legs) != 0 && len(s.Legs) != n-1 {
		errs = multierr.Append(errs, fmt.Errorf("legs: %d entries for %d link ends, want %d", len(s.Legs), n, n-1))
	}

	if n >= 2 {
		errs = multierr.Append(errs, s.validateReference(n))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, errs)
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	if fe.Param() != "" {
		return fmt.Errorf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag())
}

func (le LinkEnd) validate(i int, dir string) error {
	var errs error
	kinds := 0
	for _, set := range []bool{le.Static != nil, le.Linear != nil, le.GroundStation != nil, le.TLE != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		errs = multierr.Append(errs, fmt.Errorf("link_ends[%d] (%s): need exactly one of static, linear, ground_station, tle; got %d", i, le.Name, kinds))
	}

	if le.Linear != nil && le.Linear.Epoch != "" {
		if _, err := time.Parse(time.RFC3339Nano, le.Linear.Epoch); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("link_ends[%d].linear.epoch: %w", i, err))
		}
	}

	if spec := le.TLE; spec != nil {
		switch {
		case spec.File != "" && spec.Line1 != "":
			errs = multierr.Append(errs, fmt.Errorf("link_ends[%d].tle: give either file or line1/line2, not both", i))
		case spec.File != "":
			if _, err := loadTLEFile(resolve(dir, spec.File), spec.NORADID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("link_ends[%d].tle: %w", i, err))
			}
		case spec.Line1 != "" && spec.Line2 != "":
			if _, err := tle.ParseLines(spec.Name, spec.Line1, spec.Line2); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("link_ends[%d].tle: %w", i, err))
			}
		}
	}
	return errs
}

func (s *Scenario) validateReference(n int) error {
	role, err := s.ReferenceLinkEnd()
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	ref, err := lighttime.LinkEndIndex(role, n)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}

	d := s.RetransmissionDelays
	switch {
	case d == nil:
		return nil
	case len(d) == n:
	case len(d) == n-2:
		// Interior-only delays: pad so index ref lines up.
		d = append(append([]float64{0}, d...), 0)
	default:
		return fmt.Errorf("retransmission_delays: %d entries for %d link ends, want %d or %d", len(d), n, n, n-2)
	}
	if ref != 0 && ref != n-1 && d[ref] != 0 {
		return fmt.Errorf("reference: %s is interior and has retransmission delay %g", role, d[ref])
	}
	return nil
}

// ReferenceLinkEnd returns the configured reference role, receiver when unset.
func (s *Scenario) ReferenceLinkEnd() (lighttime.LinkEndType, error) {
	if s.Reference == "" {
		return lighttime.Receiver, nil
	}
	return lighttime.ParseLinkEndType(s.Reference)
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
