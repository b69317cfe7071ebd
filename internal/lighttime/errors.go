package lighttime

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a malformed chain or solve request: bad
	// retransmission-delay length, ambiguous interior reference delay,
	// reference index out of range, or an empty chain. Always fatal,
	// regardless of any leg's failure policy.
	ErrConfiguration = errors.New("lighttime: invalid configuration")

	// ErrConvergence marks an iteration that exhausted its budget under the
	// Fail policy. Returned errors are *ConvergenceError.
	ErrConvergence = errors.New("lighttime: light time unconverged")

	// ErrInvalidState is returned when a provider produced a NaN or Inf state.
	ErrInvalidState = errors.New("lighttime: non-finite link end state")
)

// ConvergenceError carries the residual of an unconverged solve.
type ConvergenceError struct {
	Residual   float64 // |new - previous| estimate at the last iteration (s)
	Correction float64 // total correction in effect at the last iteration (s)
	Time       float64 // input time of the solve
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v at level %g after %d iterations; current light-time correction is %g and current time was %.9f",
		ErrConvergence, e.Residual, e.Iterations, e.Correction, e.Time)
}

// Is lets errors.Is match ErrConvergence.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrConvergence
}
