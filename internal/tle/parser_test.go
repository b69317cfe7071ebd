package tle

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	newerLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9009"
	newerLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestParseThreeLine(t *testing.T) {
	input := strings.Join([]string{issName, issLine1, issLine2}, "\n")

	entries, err := Parse(strings.NewReader(input), testLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, 25544, e.NORADID)
	assert.Equal(t, issName, e.Name)
	assert.Equal(t, issLine1, e.Line1)
	assert.Equal(t, issLine2, e.Line2)
	assert.Equal(t, 2008, e.Epoch.Year())
	assert.Equal(t, time.September, e.Epoch.Month())
	assert.Equal(t, 20, e.Epoch.Day())
	assert.Equal(t, 12, e.Epoch.Hour())
}

func TestParseMixedAndMalformed(t *testing.T) {
	input := strings.Join([]string{
		newerLine1,
		newerLine2,
		"garbage between entries",
		"0 " + issName,
		issLine1,
		issLine2,
		"BROKEN",
		"1 99999U short",
		"2 99999 short",
		"",
	}, "\r\n")

	entries, err := Parse(strings.NewReader(input), testLogger())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "25544", entries[0].Name)
	assert.Equal(t, issName, entries[1].Name)
}

func TestParseLinesRejects(t *testing.T) {
	badChecksum := issLine1[:68] + "0"
	tests := []struct {
		name   string
		l1, l2 string
		substr string
	}{
		{"checksum", badChecksum, issLine2, "checksum"},
		{"short", issLine1[:40], issLine2, "69 columns"},
		{"trailing columns", issLine1 + " X", issLine2, "69 columns"},
		{"long line 2", issLine1, issLine2 + "00", "69 columns"},
		{"swapped", issLine2, issLine1, "must start"},
		{"id mismatch", issLine1, "2 25545" + issLine2[7:68] + "8", "mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLines("x", tt.l1, tt.l2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"24001.00000000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"24001.50000000", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"56366.00000000", time.Date(2056, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err := parseEpoch("2x")
	assert.Error(t, err)
	_, err = parseEpoch("ab001.0")
	assert.Error(t, err)
}

func TestDatasetFindAndRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.txt")
	content := strings.Join([]string{issName, issLine1, issLine2, "ISS NEWER", newerLine1, newerLine2}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := ParseFile(path, testLogger())
	require.NoError(t, err)
	require.Len(t, ds.Satellites, 2)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, 2008, ds.EpochRange.Min.Year())
	assert.Equal(t, 2024, ds.EpochRange.Max.Year())
	assert.True(t, ds.EpochRange.Contains(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), 0))
	assert.False(t, ds.EpochRange.Contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour))

	e, ok := ds.Find(25544)
	require.True(t, ok)
	assert.Equal(t, "ISS NEWER", e.Name)

	_, ok = ds.Find(1)
	assert.False(t, ok)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"), testLogger())
	assert.Error(t, err)
}

func TestEpochSeconds(t *testing.T) {
	e := TLEEntry{Epoch: time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)}
	assert.Zero(t, e.EpochSeconds())

	e.Epoch = e.Epoch.Add(90 * time.Second)
	assert.InDelta(t, 90, e.EpochSeconds(), 1e-9)
}
