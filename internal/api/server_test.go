package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jo11he/my-tudat/internal/auth"
	"github.com/jo11he/my-tudat/internal/batch"
	"github.com/jo11he/my-tudat/internal/ephemeris"
	"github.com/jo11he/my-tudat/internal/lighttime"
)

const (
	legDistance = 3.0e7
	turnaround  = 2e-3
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// staticFactory is a two-leg chain out to a reflector and back.
func staticFactory(opts ...lighttime.Option) batch.ChainFactory {
	ground := ephemeris.Static(r3.Vec{})
	reflector := ephemeris.Static(r3.Vec{Z: legDistance})
	return func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
		opts := append([]lighttime.Option{lighttime.WithLogger(testLogger())}, opts...)
		chain, err := lighttime.NewMultiLegCalculator([]*lighttime.Calculator{
			lighttime.NewCalculator(ground, reflector, opts...),
			lighttime.NewCalculator(reflector, ground, opts...),
		})
		anc := lighttime.NewAncillarySettings()
		anc.SetDoubleVector(lighttime.RetransmissionDelays, []float64{turnaround})
		return chain, anc, err
	}
}

func newTestServer(cfg Config, factory batch.ChainFactory) http.Handler {
	if cfg.Reference == 0 {
		cfg.Reference = lighttime.Receiver
	}
	return NewServer(cfg, factory, testLogger()).Handler()
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLightTimeEndpoint(t *testing.T) {
	h := newTestServer(Config{}, staticFactory())
	want := 2*legDistance/lighttime.SpeedOfLight + turnaround

	for _, q := range []string{"time=100", "time=2000-01-01T12:01:40Z"} {
		t.Run(q, func(t *testing.T) {
			w := get(h, "/api/v1/lighttime?"+q)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var resp SolutionResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if math.Abs(resp.LightTime-want) > 1e-12 {
				t.Errorf("light time = %.15f, want %.15f", resp.LightTime, want)
			}
			if len(resp.LinkEnds) != 4 || len(resp.Legs) != 2 {
				t.Fatalf("got %d link ends and %d legs", len(resp.LinkEnds), len(resp.Legs))
			}
			if resp.LinkEnds[3].Time != 100 {
				t.Errorf("reception time = %v, want 100", resp.LinkEnds[3].Time)
			}
			if resp.LinkEnds[1].Position[2] != legDistance {
				t.Errorf("reflector z = %v", resp.LinkEnds[1].Position[2])
			}
			if !resp.Legs[0].Converged {
				t.Error("leg 0 not converged")
			}
		})
	}
}

func TestLightTimeEndpointErrors(t *testing.T) {
	strict := lighttime.WithCriteria(lighttime.NewConvergenceCriteria(
		lighttime.WithTolerance(0), lighttime.WithMaxIterations(0), lighttime.WithFailurePolicy(lighttime.Fail)))
	moving := func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
		chain, err := lighttime.NewMultiLegCalculator([]*lighttime.Calculator{
			lighttime.NewCalculator(
				ephemeris.Linear(0, ephemeris.NewState(r3.Vec{X: 1e7}, r3.Vec{X: 7000})),
				ephemeris.Static(r3.Vec{}),
				lighttime.WithLogger(testLogger()), strict),
		})
		return chain, nil, err
	}
	broken := func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
		return nil, nil, errors.New("scenario unavailable")
	}

	tests := []struct {
		name       string
		factory    batch.ChainFactory
		target     string
		wantStatus int
	}{
		{"missing time", staticFactory(), "/api/v1/lighttime", http.StatusBadRequest},
		{"garbage time", staticFactory(), "/api/v1/lighttime?time=tomorrow", http.StatusBadRequest},
		{"nan time", staticFactory(), "/api/v1/lighttime?time=NaN", http.StatusBadRequest},
		{"unknown reference", staticFactory(), "/api/v1/lighttime?time=0&reference=observer", http.StatusBadRequest},
		{"ambiguous interior reference", staticFactory(), "/api/v1/lighttime?time=0&reference=retransmitter1", http.StatusBadRequest},
		{"transmitter reference", staticFactory(), "/api/v1/lighttime?time=0&reference=transmitter", http.StatusOK},
		{"unconverged", moving, "/api/v1/lighttime?time=0", http.StatusUnprocessableEntity},
		{"factory failure", broken, "/api/v1/lighttime?time=0", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newTestServer(Config{}, tt.factory), tt.target)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var resp map[string]any
				json.NewDecoder(w.Body).Decode(&resp)
				if resp["error"] == nil {
					t.Error("expected error field in response")
				}
			}
		})
	}
}

func TestSeriesEndpoint(t *testing.T) {
	h := newTestServer(Config{Workers: 2, MaxSeriesEpochs: 50}, staticFactory())

	w := get(h, "/api/v1/lighttime/series?start=0&step=10&count=7&reference=transmitter")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp SeriesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 7 || len(resp.Solutions) != 7 {
		t.Fatalf("count = %d, solutions = %d", resp.Count, len(resp.Solutions))
	}
	for i, sol := range resp.Solutions {
		if got, want := sol.LinkEnds[0].Time, float64(10*i); got != want {
			t.Errorf("solution %d transmitted at %v, want %v", i, got, want)
		}
	}

	tests := []struct {
		name  string
		query string
	}{
		{"budget exceeded", "start=0&step=1&count=51"},
		{"zero step", "start=0&step=0&count=5"},
		{"missing count", "start=0&step=1"},
		{"bad start", "start=later&step=1&count=5"},
		{"bad warm start", "start=0&step=1&count=5&warm_start=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(h, "/api/v1/lighttime/series?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	w = get(h, "/api/v1/lighttime/series?start=0&step=1&count=51")
	var budget map[string]any
	json.NewDecoder(w.Body).Decode(&budget)
	if budget["max_epochs"] == nil {
		t.Error("expected max_epochs field in response")
	}
}

func TestRangingEndpoint(t *testing.T) {
	h := newTestServer(Config{}, staticFactory())

	w := get(h, "/api/v1/lighttime/ranging?time=0")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp RangeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	want := 2*legDistance + lighttime.SpeedOfLight*turnaround
	if math.Abs(resp.Range-want) > 1e-6 {
		t.Errorf("range = %.6f, want %.6f", resp.Range, want)
	}
}

func TestAuthAndProbes(t *testing.T) {
	h := newTestServer(Config{Auth: auth.Config{Enabled: true, Token: "tok"}}, staticFactory())

	if w := get(h, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
	if w := get(h, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("readyz status = %d", w.Code)
	}
	if w := get(h, "/api/v1/lighttime?time=0"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}
	if w := get(h, "/api/v1/lighttime?time=0", "Authorization", "Bearer tok"); w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}

	notReady := newTestServer(Config{}, func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
		return nil, nil, errors.New("no scenario")
	})
	if w := get(notReady, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("leg 0: %w", lighttime.ErrConfiguration), http.StatusBadRequest},
		{&lighttime.ConvergenceError{}, http.StatusUnprocessableEntity},
		{lighttime.ErrInvalidState, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"light_time_s": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Errorf("body = %v, want an error field", body)
	}
	if !bytes.Contains(buf.Bytes(), []byte("encode response failed")) {
		t.Errorf("log = %q, want the encode failure", buf.String())
	}
}
