package lighttime

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/ephemeris"
)

// SpeedOfLight is the vacuum speed of light in m/s.
const SpeedOfLight = 299792458.0

// LinkEndState is a link end's time and state within a solution.
type LinkEndState struct {
	Time  float64
	State ephemeris.State
}

// LegSolution is the result of one single-leg solve.
type LegSolution struct {
	Transmitter    LinkEndState
	Receiver       LinkEndState
	LightTime      float64 // ideal light time plus corrections (s)
	IdealLightTime float64 // straight-line distance over propagation speed (s)
	Correction     float64 // total correction in effect at the last iteration (s)
	Iterations     int
	Converged      bool // false when accepted under AcceptSilently/WarnAndAccept
}

// hasTimes reports whether both link-end times are usable as a warm start.
func (s LegSolution) hasTimes() bool {
	return isFinite(s.Transmitter.Time) && isFinite(s.Receiver.Time)
}

// Calculator solves the light-time equation for one leg: the signal leaves
// the transmitter at tx and arrives at the receiver at rx with
// rx - tx = |r_rx(rx) - r_tx(tx)| / c + Σ corrections.
//
// The providers and corrections are shared by reference. A Calculator caches
// the ideal light time and total correction of its last solve, so a single
// instance must not be used from several goroutines at once.
type Calculator struct {
	transmitter ephemeris.Provider
	receiver    ephemeris.Provider
	corrections []Correction
	criteria    *ConvergenceCriteria
	speed       float64
	logger      *slog.Logger

	pendingFuncs []CorrectionFunc

	currentIdealLightTime float64
	currentCorrection     float64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCorrections registers correction providers.
func WithCorrections(cs ...Correction) Option {
	return func(c *Calculator) { c.corrections = append(c.corrections, cs...) }
}

// WithCorrectionFuncs registers plain functions as corrections.
func WithCorrectionFuncs(fns ...CorrectionFunc) Option {
	return func(c *Calculator) { c.pendingFuncs = append(c.pendingFuncs, fns...) }
}

// WithCriteria replaces the default convergence criteria.
func WithCriteria(criteria *ConvergenceCriteria) Option {
	return func(c *Calculator) {
		if criteria != nil {
			c.criteria = criteria
		}
	}
}

// WithLogger sets the logger used for convergence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPropagationSpeed overrides the signal speed (m/s). Non-positive
// values are ignored.
func WithPropagationSpeed(v float64) Option {
	return func(c *Calculator) {
		if v > 0 {
			c.speed = v
		}
	}
}

// NewCalculator builds a single-leg calculator between two providers.
func NewCalculator(transmitter, receiver ephemeris.Provider, opts ...Option) *Calculator {
	c := &Calculator{
		transmitter: transmitter,
		receiver:    receiver,
		criteria:    NewConvergenceCriteria(),
		speed:       SpeedOfLight,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i, fn := range c.pendingFuncs {
		c.corrections = append(c.corrections,
			NewFunctionCorrection(fmt.Sprintf("function_correction_%d", i), fn, c.logger))
	}
	c.pendingFuncs = nil
	return c
}

// Solve computes the light time with a zero-light-time seed. t is the
// reception time when atReception is true, the transmission time otherwise.
func (c *Calculator) Solve(t float64, atReception bool) (LegSolution, error) {
	return c.solve(t, atReception, nil)
}

// SolveFrom is Solve seeded with the link-end times of guess. A guess with a
// NaN or Inf time falls back to the zero-light-time seed.
func (c *Calculator) SolveFrom(t float64, atReception bool, guess LegSolution) (LegSolution, error) {
	return c.solve(t, atReception, &guess)
}

// LightTime returns only the light time of Solve.
func (c *Calculator) LightTime(t float64, atReception bool) (float64, error) {
	sol, err := c.solve(t, atReception, nil)
	if err != nil {
		return 0, err
	}
	return sol.LightTime, nil
}

// RelativeRangeVector returns the receiver position at reception minus the
// transmitter position at transmission.
func (c *Calculator) RelativeRangeVector(t float64, atReception bool) (r3.Vec, error) {
	sol, err := c.solve(t, atReception, nil)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Sub(sol.Receiver.State.Position(), sol.Transmitter.State.Position()), nil
}

// IdealLightTime returns the uncorrected light time of the last solve.
func (c *Calculator) IdealLightTime() float64 { return c.currentIdealLightTime }

// TotalCorrection returns the summed correction of the last solve.
func (c *Calculator) TotalCorrection() float64 { return c.currentCorrection }

// Corrections returns the registered corrections.
func (c *Calculator) Corrections() []Correction {
	return append([]Correction(nil), c.corrections...)
}

// Criteria returns the convergence criteria.
func (c *Calculator) Criteria() *ConvergenceCriteria { return c.criteria }

// PropagationSpeed returns the signal speed in m/s.
func (c *Calculator) PropagationSpeed() float64 { return c.speed }

func (c *Calculator) solve(t float64, atReception bool, guess *LegSolution) (LegSolution, error) {
	// The known end is always evaluated at t; a guess only moves the other
	// end by its light time.
	txTime, rxTime := t, t
	if guess != nil && guess.hasTimes() {
		lt := guess.Receiver.Time - guess.Transmitter.Time
		if atReception {
			txTime = t - lt
		} else {
			rxTime = t + lt
		}
	}

	txState := c.transmitter.StateAt(txTime)
	rxState := c.receiver.StateAt(rxTime)
	if err := c.checkStates(txState, rxState, txTime, rxTime); err != nil {
		return LegSolution{}, err
	}

	c.refreshCorrection(txState, rxState, txTime, rxTime)
	previous := c.estimate(txState, rxState)

	var (
		current           float64
		residual          float64
		converged         bool
		iteration         int
		updateCorrections = c.criteria.IterateCorrections()
		tolerance         = c.criteria.Tolerance()
		maxIterations     = c.criteria.MaxIterations()
	)

	for ; ; iteration++ {
		if updateCorrections {
			c.refreshCorrection(txState, rxState, txTime, rxTime)
		}

		if atReception {
			rxTime = t
			txTime = t - previous
			txState = c.transmitter.StateAt(txTime)
		} else {
			txTime = t
			rxTime = t + previous
			rxState = c.receiver.StateAt(rxTime)
		}
		if err := c.checkStates(txState, rxState, txTime, rxTime); err != nil {
			return LegSolution{}, err
		}

		current = c.estimate(txState, rxState)
		residual = math.Abs(current - previous)
		previous = current

		if residual < tolerance {
			// Positions settled with stale corrections: run once more with a
			// refreshed correction before accepting.
			if !updateCorrections {
				updateCorrections = true
				continue
			}
			converged = true
			break
		}
		if iteration >= maxIterations {
			break
		}
	}

	sol := LegSolution{
		Transmitter:    LinkEndState{Time: txTime, State: txState},
		Receiver:       LinkEndState{Time: rxTime, State: rxState},
		LightTime:      current,
		IdealLightTime: c.currentIdealLightTime,
		Correction:     c.currentCorrection,
		Iterations:     iteration + 1,
		Converged:      converged,
	}
	if converged {
		return sol, nil
	}

	switch c.criteria.FailurePolicy() {
	case AcceptSilently:
		return sol, nil
	case WarnAndAccept:
		c.logger.Warn("light time unconverged",
			"residual", residual,
			"correction", c.currentCorrection,
			"epoch", t,
			"iterations", sol.Iterations,
		)
		return sol, nil
	default:
		return LegSolution{}, &ConvergenceError{
			Residual:   residual,
			Correction: c.currentCorrection,
			Time:       t,
			Iterations: sol.Iterations,
		}
	}
}

// estimate updates the ideal light time from the current states and returns
// it plus the current correction.
func (c *Calculator) estimate(tx, rx ephemeris.State) float64 {
	c.currentIdealLightTime = r3.Norm(r3.Sub(rx.Position(), tx.Position())) / c.speed
	return c.currentIdealLightTime + c.currentCorrection
}

func (c *Calculator) refreshCorrection(tx, rx ephemeris.State, txTime, rxTime float64) {
	c.currentCorrection = SumCorrections(c.corrections, tx, rx, txTime, rxTime)
}

func (c *Calculator) checkStates(tx, rx ephemeris.State, txTime, rxTime float64) error {
	if !tx.IsFinite() {
		return fmt.Errorf("%w: transmitter at t=%.9f", ErrInvalidState, txTime)
	}
	if !rx.IsFinite() {
		return fmt.Errorf("%w: receiver at t=%.9f", ErrInvalidState, rxTime)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
