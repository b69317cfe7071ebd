package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo11he/my-tudat/internal/api"
	"github.com/jo11he/my-tudat/internal/passes"
)

const relayScenario = "../../internal/scenario/testdata/relay.yaml"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(testLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	out, err := execute(t, "solve", "--scenario", relayScenario, "--time", "0")
	require.NoError(t, err)

	var resp api.SolutionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.LinkEnds, 4)
	require.Len(t, resp.Legs, 2)

	assert.Equal(t, 0.0, resp.LinkEnds[3].Time)
	assert.Greater(t, resp.LightTime, 0.2)
	assert.Less(t, resp.LightTime, 0.3)
	for i, leg := range resp.Legs {
		assert.True(t, leg.Converged, "leg %d", i)
	}
}

func TestSolveCommandTransmitterReference(t *testing.T) {
	out, err := execute(t, "solve", "--scenario", relayScenario, "--time", "100", "--reference", "transmitter")
	require.NoError(t, err)

	var resp api.SolutionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.LinkEnds, 4)
	assert.Equal(t, 100.0, resp.LinkEnds[0].Time)
	assert.Greater(t, resp.LinkEnds[3].Time, 100.0)
}

func TestSolveCommandErrors(t *testing.T) {
	t.Setenv("LIGHTTIME_SCENARIO", "")

	_, err := execute(t, "solve")
	assert.ErrorContains(t, err, "no scenario given")

	_, err = execute(t, "solve", "--scenario", relayScenario, "--time", "yesterday")
	assert.Error(t, err)

	_, err = execute(t, "solve", "--scenario", relayScenario, "--reference", "antenna")
	assert.Error(t, err)
}

func TestScenarioFromEnvironment(t *testing.T) {
	t.Setenv("LIGHTTIME_SCENARIO", relayScenario)

	out, err := execute(t, "solve")
	require.NoError(t, err)
	assert.Contains(t, out, "light_time_s")
}

func TestSeriesCommand(t *testing.T) {
	out, err := execute(t, "series", "--scenario", relayScenario,
		"--start", "0", "--step", "60", "--count", "5", "--workers", "2")
	require.NoError(t, err)

	var resp api.SeriesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 5, resp.Count)
	require.Len(t, resp.Solutions, 5)
	for i, sol := range resp.Solutions {
		require.Len(t, sol.LinkEnds, 4)
		assert.Equal(t, float64(i)*60, sol.LinkEnds[3].Time)
	}
}

func TestSeriesCommandRejectsEmptyCount(t *testing.T) {
	_, err := execute(t, "series", "--scenario", relayScenario, "--count", "0")
	assert.ErrorContains(t, err, "count must be positive")
}

func TestWindowsCommand(t *testing.T) {
	out, err := execute(t, "windows", "--scenario", relayScenario,
		"--station", "madrid", "--target", "relay", "--start", "0", "--end", "7200", "--coarse-step", "120")
	require.NoError(t, err)

	var windows []passes.Window
	require.NoError(t, json.Unmarshal([]byte(out), &windows))
	for i, w := range windows {
		assert.GreaterOrEqual(t, w.End, w.Start, "window %d", i)
		assert.GreaterOrEqual(t, w.MaxElevation, 10.0, "window %d", i)
		if i > 0 {
			assert.Greater(t, w.Start, windows[i-1].End)
		}
	}
}

func TestWindowsCommandLightTime(t *testing.T) {
	args := []string{"windows", "--scenario", relayScenario,
		"--station", "madrid", "--target", "relay", "--start", "0", "--end", "86400", "--coarse-step", "600"}

	out, err := execute(t, args...)
	require.NoError(t, err)
	var geometric []passes.Window
	require.NoError(t, json.Unmarshal([]byte(out), &geometric))

	out, err = execute(t, append(args, "--light-time")...)
	require.NoError(t, err)
	var corrected []passes.Window
	require.NoError(t, json.Unmarshal([]byte(out), &corrected))

	// A ~0.12 s light time moves a slow relay's edges by at most one fine step.
	require.Len(t, corrected, len(geometric))
	for i := range corrected {
		assert.InDelta(t, geometric[i].Start, corrected[i].Start, 1, "window %d", i)
		assert.InDelta(t, geometric[i].End, corrected[i].End, 1, "window %d", i)
		assert.InDelta(t, geometric[i].MaxElevation, corrected[i].MaxElevation, 0.01, "window %d", i)
	}
}

func TestWindowsCommandUnknownLinkEnd(t *testing.T) {
	_, err := execute(t, "windows", "--scenario", relayScenario, "--station", "goldstone", "--target", "relay")
	assert.ErrorContains(t, err, "unknown station")

	_, err = execute(t, "windows", "--scenario", relayScenario, "--station", "madrid", "--target", "moon")
	assert.ErrorContains(t, err, "unknown target")

	// relay is not a ground station.
	_, err = execute(t, "windows", "--scenario", relayScenario, "--station", "relay", "--target", "madrid")
	assert.Error(t, err)
}

func TestLoadServeConfigDefaults(t *testing.T) {
	t.Setenv("LIGHTTIME_HTTP_ADDR", "")
	t.Setenv("LIGHTTIME_WORKERS", "")
	t.Setenv("LIGHTTIME_MAX_SERIES_EPOCHS", "")

	cfg := loadServeConfig(testLogger())
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 10000, cfg.MaxSeriesEpochs)
}

func TestLoadServeConfigFromEnv(t *testing.T) {
	t.Setenv("LIGHTTIME_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("LIGHTTIME_WORKERS", "3")
	t.Setenv("LIGHTTIME_MAX_SERIES_EPOCHS", "500")

	cfg := loadServeConfig(testLogger())
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 500, cfg.MaxSeriesEpochs)
}

func TestLoadServeConfigInvalidFallsBack(t *testing.T) {
	t.Setenv("LIGHTTIME_WORKERS", "zero")
	t.Setenv("LIGHTTIME_MAX_SERIES_EPOCHS", "-4")

	cfg := loadServeConfig(testLogger())
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 10000, cfg.MaxSeriesEpochs)
}

func TestLoadAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		enabled string
		token   string
		wantOn  bool
		wantErr bool
	}{
		{"unset", "", "", false, false},
		{"disabled", "false", "", false, false},
		{"enabled with token", "true", "s3cret", true, false},
		{"enabled without token", "1", "", true, true},
		{"not a bool", "yes please", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LIGHTTIME_AUTH_ENABLED", tt.enabled)
			t.Setenv("LIGHTTIME_AUTH_TOKEN", tt.token)

			cfg, err := loadAuthConfig(testLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOn, cfg.Enabled)
			assert.Equal(t, tt.token, cfg.Token)
		})
	}
}

func TestLoadLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		t.Setenv("LIGHTTIME_LOG_LEVEL", in)
		assert.Equal(t, want, loadLogLevel(), "level %q", in)
	}
}
