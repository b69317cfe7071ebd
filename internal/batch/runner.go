// Package batch solves a light-time chain at many epochs in parallel.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/metrics"
)

// ChainFactory builds an independent chain. Calculators cache per-solve
// state, so every worker gets its own.
type ChainFactory func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error)

// Config controls a Runner.
type Config struct {
	Workers   int                   // <= 0 means runtime.NumCPU()
	Reference lighttime.LinkEndType // link end whose time is given
	WarmStart bool                  // seed each solve with the previous epoch's solution
}

// Runner fans epochs out to a fixed number of workers.
type Runner struct {
	factory ChainFactory
	cfg     Config
	logger  *slog.Logger
}

// span is a contiguous run of epochs handled by one worker, so warm starts
// see neighbouring epochs.
type span struct {
	lo, hi int
}

// NewRunner creates a runner.
func NewRunner(factory ChainFactory, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{factory: factory, cfg: cfg, logger: logger}
}

// Epochs returns count times start, start+step, ...
func Epochs(start, step float64, count int) []float64 {
	out := make([]float64, max(count, 0))
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Run solves the chain at every time and returns the solutions in input
// order. The first failure cancels the remaining work and is returned.
func (r *Runner) Run(ctx context.Context, times []float64) ([]lighttime.ChainSolution, error) {
	out := make([]lighttime.ChainSolution, len(times))
	if len(times) == 0 {
		return out, nil
	}

	start := time.Now()
	workers := min(r.cfg.Workers, len(times))
	// A few spans per worker keeps the load even without breaking warm starts.
	chunk := max(1, (len(times)+workers*4-1)/(workers*4))

	g, gCtx := errgroup.WithContext(ctx)
	jobs := make(chan span, workers*2)

	g.Go(func() error {
		defer close(jobs)
		for lo := 0; lo < len(times); lo += chunk {
			select {
			case jobs <- span{lo: lo, hi: min(lo+chunk, len(times))}:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	var solved atomic.Int64
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			chain, anc, err := r.factory()
			if err != nil {
				return fmt.Errorf("building chain: %w", err)
			}
			ref, err := lighttime.LinkEndIndex(r.cfg.Reference, chain.NumberOfLinkEnds())
			if err != nil {
				return err
			}
			delays, _ := anc.DoubleVector(lighttime.RetransmissionDelays)

			for s := range jobs {
				var prev *lighttime.ChainSolution
				for i := s.lo; i < s.hi; i++ {
					if err := gCtx.Err(); err != nil {
						return err
					}
					var sol lighttime.ChainSolution
					if r.cfg.WarmStart && prev != nil {
						sol, err = chain.SolveFrom(times[i], ref, delays, *prev)
					} else {
						sol, err = chain.Solve(times[i], ref, delays)
					}
					RecordChain(sol, err)
					if err != nil {
						return fmt.Errorf("epoch %d (t=%.6f): %w", i, times[i], err)
					}
					out[i] = sol
					prev = &out[i]
					solved.Add(1)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	n := int(solved.Load())
	metrics.RecordBatch(time.Since(start), n, len(times)-n)
	if err != nil {
		r.logger.Warn("batch aborted",
			"component", "batch",
			"epochs", len(times),
			"solved", n,
			"error", err,
		)
		return nil, err
	}

	r.logger.Debug("batch complete",
		"component", "batch",
		"epochs", len(times),
		"workers", workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
