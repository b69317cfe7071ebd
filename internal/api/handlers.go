package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jo11he/my-tudat/internal/batch"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/observation"
	"github.com/jo11he/my-tudat/internal/transform"
)

// ParseTime accepts RFC 3339 or seconds since J2000.0.
func ParseTime(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("time is required")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("time %q is not finite", s)
		}
		return v, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("time %q is neither RFC 3339 nor seconds since J2000", s)
	}
	return transform.SecondsSinceJ2000(t), nil
}

func parseReference(r *http.Request, fallback lighttime.LinkEndType) (lighttime.LinkEndType, error) {
	v := r.URL.Query().Get("reference")
	if v == "" {
		return fallback, nil
	}
	return lighttime.ParseLinkEndType(v)
}

// statusFor maps solver errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lighttime.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, lighttime.ErrConvergence), errors.Is(err, lighttime.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSolveError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("solve failed", "component", "api", "error", err)
	}
	writeError(w, status, err.Error())
}

func lightTimeHandler(cfg Config, factory batch.ChainFactory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := ParseTime(r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := parseReference(r, cfg.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		chain, anc, err := factory()
		if err != nil {
			writeSolveError(w, logger, err)
			return
		}
		sol, err := chain.SolveForLinkEnd(t, role, anc)
		batch.RecordChain(sol, err)
		if err != nil {
			writeSolveError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, NewSolutionResponse(sol))
	}
}

func seriesHandler(cfg Config, factory batch.ChainFactory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		start, err := ParseTime(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "start: "+err.Error())
			return
		}
		step, err := strconv.ParseFloat(q.Get("step"), 64)
		if err != nil || step <= 0 {
			writeError(w, http.StatusBadRequest, "step must be a positive number of seconds")
			return
		}
		count, err := strconv.Atoi(q.Get("count"))
		if err != nil || count < 1 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		if count > cfg.MaxSeriesEpochs {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      fmt.Sprintf("count %d exceeds the per-request limit", count),
				"max_epochs": cfg.MaxSeriesEpochs,
			})
			return
		}
		role, err := parseReference(r, cfg.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		warm := true
		if v := q.Get("warm_start"); v != "" {
			if warm, err = strconv.ParseBool(v); err != nil {
				writeError(w, http.StatusBadRequest, "warm_start must be a boolean")
				return
			}
		}

		runner := batch.NewRunner(factory, batch.Config{
			Workers:   cfg.Workers,
			Reference: role,
			WarmStart: warm,
		}, logger)
		sols, err := runner.Run(r.Context(), batch.Epochs(start, step, count))
		if err != nil {
			writeSolveError(w, logger, err)
			return
		}

		resp := SeriesResponse{Count: len(sols), Solutions: make([]SolutionResponse, len(sols))}
		for i, sol := range sols {
			resp.Solutions[i] = NewSolutionResponse(sol)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rangingHandler(cfg Config, factory batch.ChainFactory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := ParseTime(r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := parseReference(r, cfg.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		chain, anc, err := factory()
		if err != nil {
			writeSolveError(w, logger, err)
			return
		}
		rng, err := observation.NWayRange(chain, t, role, anc)
		batch.RecordChain(lighttime.ChainSolution{Legs: rng.Legs}, err)
		if err != nil {
			writeSolveError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, NewRangeResponse(rng))
	}
}
