package lighttime

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

// FailurePolicy decides what a solve does when it runs out of iterations.
type FailurePolicy int

const (
	// AcceptSilently returns the last estimate without comment.
	AcceptSilently FailurePolicy = iota
	// WarnAndAccept logs the residual and returns the last estimate.
	WarnAndAccept
	// Fail returns a *ConvergenceError instead of a value.
	Fail
)

func (p FailurePolicy) String() string {
	switch p {
	case AcceptSilently:
		return "accept"
	case WarnAndAccept:
		return "warn"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy accepts "accept", "warn", "fail" and the long forms
// "accept_silently", "warn_and_accept", "throw".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accept_silently", "":
		return AcceptSilently, nil
	case "warn", "warn_and_accept":
		return WarnAndAccept, nil
	case "fail", "throw":
		return Fail, nil
	}
	return 0, fmt.Errorf("%w: unknown failure policy %q", ErrConfiguration, s)
}

// Defaults for NewConvergenceCriteria.
const (
	DefaultMaxIterations      = 50
	DefaultIterateCorrections = false
	DefaultFailurePolicy      = AcceptSilently
)

// ConvergenceCriteria bounds the light-time iteration. Immutable once built;
// safe to share between calculators.
type ConvergenceCriteria struct {
	iterateCorrections bool
	maxIterations      int
	tolerance          float64 // NaN when unset
	failurePolicy      FailurePolicy
}

// CriteriaOption configures a ConvergenceCriteria.
type CriteriaOption func(*ConvergenceCriteria)

// WithIterateCorrections re-evaluates corrections on every iteration instead
// of once at the start and once more after the positions settle.
func WithIterateCorrections(iterate bool) CriteriaOption {
	return func(c *ConvergenceCriteria) { c.iterateCorrections = iterate }
}

// WithMaxIterations sets the iteration at which the failure policy applies.
// Values below zero are clamped to zero.
func WithMaxIterations(n int) CriteriaOption {
	return func(c *ConvergenceCriteria) { c.maxIterations = max(n, 0) }
}

// WithTolerance sets an explicit absolute tolerance in seconds.
func WithTolerance(tol float64) CriteriaOption {
	return func(c *ConvergenceCriteria) { c.tolerance = tol }
}

// WithFailurePolicy sets the behaviour on exhausted iterations.
func WithFailurePolicy(p FailurePolicy) CriteriaOption {
	return func(c *ConvergenceCriteria) { c.failurePolicy = p }
}

// NewConvergenceCriteria builds criteria from the defaults plus opts.
func NewConvergenceCriteria(opts ...CriteriaOption) *ConvergenceCriteria {
	c := &ConvergenceCriteria{
		iterateCorrections: DefaultIterateCorrections,
		maxIterations:      DefaultMaxIterations,
		tolerance:          math.NaN(),
		failurePolicy:      DefaultFailurePolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IterateCorrections reports whether corrections are refreshed every iteration.
func (c *ConvergenceCriteria) IterateCorrections() bool { return c.iterateCorrections }

// MaxIterations returns the iteration budget.
func (c *ConvergenceCriteria) MaxIterations() int { return c.maxIterations }

// FailurePolicy returns the configured failure policy.
func (c *ConvergenceCriteria) FailurePolicy() FailurePolicy { return c.failurePolicy }

// HasExplicitTolerance reports whether WithTolerance was applied.
func (c *ConvergenceCriteria) HasExplicitTolerance() bool { return !math.IsNaN(c.tolerance) }

// Tolerance returns the absolute tolerance used by float64 solves.
func (c *ConvergenceCriteria) Tolerance() float64 {
	return AbsoluteTolerance[float64](c)
}

// AbsoluteTolerance returns the explicit tolerance if one was set, else the
// default for the precision of T.
func AbsoluteTolerance[T constraints.Float](c *ConvergenceCriteria) T {
	if c.HasExplicitTolerance() {
		return T(c.tolerance)
	}
	return DefaultTolerance[T]()
}

// DefaultTolerance is the light-time tolerance (s) sized to T's precision:
// 1e-12 for 64-bit floats, 1e-6 for 32-bit.
func DefaultTolerance[T constraints.Float]() T {
	// The conversion forces rounding to T.
	one := T(1)
	if T(one+T(1e-9)) == one {
		return T(1e-6)
	}
	return T(1e-12)
}
