package lighttime

import (
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/ephemeris"
)

// Correction is one additive term of the light time beyond the straight-line
// vacuum value (tropospheric, relativistic, hardware, ...). The set of
// corrections is open: anything implementing this interface can be
// registered on a Calculator.
//
// Implementations that do not provide partials can embed
// *UnimplementedPartials.
type Correction interface {
	// Correction returns the delay in seconds for a transmitter state at
	// txTime and a receiver state at rxTime.
	Correction(tx, rx ephemeris.State, txTime, rxTime float64) float64

	// PartialWrtLinkEndTime is the derivative of the correction with respect
	// to the time at link end evaluated, with fixed held constant.
	PartialWrtLinkEndTime(tx, rx ephemeris.State, txTime, rxTime float64, fixed, evaluated LinkEndType) float64

	// PartialWrtLinkEndPosition is the gradient of the correction with
	// respect to the position of link end evaluated.
	PartialWrtLinkEndPosition(tx, rx ephemeris.State, txTime, rxTime float64, evaluated LinkEndType) r3.Vec
}

// UnimplementedPartials gives a Correction zero partials. The first call on
// an instance logs a warning; later calls are silent.
type UnimplementedPartials struct {
	Name   string
	Logger *slog.Logger

	warnOnce sync.Once
}

func (u *UnimplementedPartials) warn() {
	u.warnOnce.Do(func() {
		logger := u.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("light-time correction partial not implemented, using zero",
			"correction", u.Name,
		)
	})
}

// PartialWrtLinkEndTime returns 0.
func (u *UnimplementedPartials) PartialWrtLinkEndTime(_, _ ephemeris.State, _, _ float64, _, _ LinkEndType) float64 {
	u.warn()
	return 0
}

// PartialWrtLinkEndPosition returns the zero vector.
func (u *UnimplementedPartials) PartialWrtLinkEndPosition(_, _ ephemeris.State, _, _ float64, _ LinkEndType) r3.Vec {
	u.warn()
	return r3.Vec{}
}

// CorrectionFunc is the signature of an ad hoc correction.
type CorrectionFunc func(tx, rx ephemeris.State, txTime, rxTime float64) float64

// FunctionCorrection lifts a CorrectionFunc into a Correction.
type FunctionCorrection struct {
	*UnimplementedPartials
	fn CorrectionFunc
}

// NewFunctionCorrection wraps fn. name labels the one-time partials warning.
func NewFunctionCorrection(name string, fn CorrectionFunc, logger *slog.Logger) *FunctionCorrection {
	return &FunctionCorrection{
		UnimplementedPartials: &UnimplementedPartials{Name: name, Logger: logger},
		fn:                    fn,
	}
}

// Correction calls the wrapped function.
func (f *FunctionCorrection) Correction(tx, rx ephemeris.State, txTime, rxTime float64) float64 {
	return f.fn(tx, rx, txTime, rxTime)
}

// SumCorrections adds up every correction at one state/time pair.
func SumCorrections(corrections []Correction, tx, rx ephemeris.State, txTime, rxTime float64) float64 {
	var total float64
	for _, c := range corrections {
		total += c.Correction(tx, rx, txTime, rxTime)
	}
	return total
}
