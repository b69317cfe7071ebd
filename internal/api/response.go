package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo11he/my-tudat/internal/ephemeris"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/observation"
	"github.com/jo11he/my-tudat/internal/transform"
)

// LinkEndResponse is one link end of a solved chain.
type LinkEndResponse struct {
	Time     float64    `json:"time"` // seconds since J2000.0
	UTC      string     `json:"utc"`
	Position [3]float64 `json:"position_m"`
	Velocity [3]float64 `json:"velocity_m_s"`
}

// LegResponse summarises one leg.
type LegResponse struct {
	LightTime      float64 `json:"light_time_s"`
	IdealLightTime float64 `json:"ideal_light_time_s"`
	Correction     float64 `json:"correction_s"`
	Iterations     int     `json:"iterations"`
	Converged      bool    `json:"converged"`
}

// SolutionResponse is a solved chain.
type SolutionResponse struct {
	LightTime float64           `json:"light_time_s"`
	LinkEnds  []LinkEndResponse `json:"link_ends"`
	Legs      []LegResponse     `json:"legs"`
}

// SeriesResponse is a solved chain at many epochs.
type SeriesResponse struct {
	Count     int                `json:"count"`
	Solutions []SolutionResponse `json:"solutions"`
}

// RangeResponse is an n-way range observable.
type RangeResponse struct {
	Range     float64           `json:"range_m"`
	LightTime float64           `json:"light_time_s"`
	LinkEnds  []LinkEndResponse `json:"link_ends"`
}

// NewSolutionResponse converts a chain solution for output.
func NewSolutionResponse(sol lighttime.ChainSolution) SolutionResponse {
	resp := SolutionResponse{
		LightTime: sol.LightTime,
		LinkEnds:  linkEnds(sol.Times, sol.States),
		Legs:      make([]LegResponse, len(sol.Legs)),
	}
	for i, leg := range sol.Legs {
		resp.Legs[i] = LegResponse{
			LightTime:      leg.LightTime,
			IdealLightTime: leg.IdealLightTime,
			Correction:     leg.Correction,
			Iterations:     leg.Iterations,
			Converged:      leg.Converged,
		}
	}
	return resp
}

// NewRangeResponse converts a range observable for output.
func NewRangeResponse(r observation.Range) RangeResponse {
	return RangeResponse{
		Range:     r.Value,
		LightTime: r.LightTime,
		LinkEnds:  linkEnds(r.Times, r.States),
	}
}

func linkEnds(times []float64, states []ephemeris.State) []LinkEndResponse {
	out := make([]LinkEndResponse, min(len(times), len(states)))
	for i := range out {
		s := states[i]
		out[i] = LinkEndResponse{
			Time:     times[i],
			UTC:      transform.TimeFromJ2000Seconds(times[i]).Format(time.RFC3339Nano),
			Position: [3]float64{s[0], s[1], s[2]},
			Velocity: [3]float64{s[3], s[4], s[5]},
		}
	}
	return out
}

// writeJSON encodes v before writing the header so an unencodable value
// (NaN, Inf) becomes a 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response failed", "component", "api", "status", status, "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("write response failed", "component", "api", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
