package batch

import (
	"errors"

	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/metrics"
)

// RecordChain records the per-leg outcomes of one chain solve. On error only
// the failing leg is recorded; its iteration count is known only for
// convergence failures.
func RecordChain(sol lighttime.ChainSolution, err error) {
	if err != nil {
		var convErr *lighttime.ConvergenceError
		if errors.As(err, &convErr) {
			metrics.RecordSolve(convErr.Iterations, metrics.OutcomeFailed)
			return
		}
		metrics.RecordFailure()
		return
	}
	for _, leg := range sol.Legs {
		outcome := metrics.OutcomeConverged
		if !leg.Converged {
			outcome = metrics.OutcomeAcceptedUnconverged
		}
		metrics.RecordSolve(leg.Iterations, outcome)
	}
}
