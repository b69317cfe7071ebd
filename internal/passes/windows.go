// Package passes finds the intervals during which a link end is above a
// ground station's elevation mask.
package passes

import (
	"context"
	"fmt"
	"time"

	"github.com/jo11he/my-tudat/internal/ephemeris"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/observation"
	"github.com/jo11he/my-tudat/internal/transform"
)

// Window is one visibility interval. Times are seconds since J2000.0.
type Window struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	StartUTC         string  `json:"start_utc"`
	EndUTC           string  `json:"end_utc"`
	DurationSeconds  float64 `json:"duration_seconds"`
	MaxElevationTime float64 `json:"max_elevation_time"`
	MaxElevation     float64 `json:"max_elevation"`
	AzimuthAtMax     float64 `json:"azimuth_at_max"`
	StartAzimuth     float64 `json:"start_azimuth"`
	EndAzimuth       float64 `json:"end_azimuth"`
	MinRangeM        float64 `json:"min_range_m"`
}

// Request describes a window search.
type Request struct {
	Mask   observation.ElevationViability
	Target ephemeris.Provider

	// Link, when set, replaces Target: the target is the leg's transmitter
	// at the light-time corrected transmission time, the station its receiver.
	Link *lighttime.Calculator

	Start, End float64
	CoarseStep float64 // default 30 s
	FineStep   float64 // default 1 s
	MaxWindows int     // 0 means unlimited
}

const (
	defaultCoarseStep = 30
	defaultFineStep   = 1
)

// Find scans [Start, End) and returns the windows in time order. A window
// still open at End is closed there.
func Find(ctx context.Context, req Request) ([]Window, error) {
	if req.Target == nil && req.Link == nil {
		return nil, fmt.Errorf("%w: no target", lighttime.ErrConfiguration)
	}
	if req.Mask.Station == nil {
		return nil, fmt.Errorf("%w: no ground station", lighttime.ErrConfiguration)
	}
	if !(req.End > req.Start) {
		return nil, fmt.Errorf("%w: end %.3f not after start %.3f", lighttime.ErrConfiguration, req.End, req.Start)
	}
	if req.CoarseStep <= 0 {
		req.CoarseStep = defaultCoarseStep
	}
	if req.FineStep <= 0 {
		req.FineStep = defaultFineStep
	}

	var windows []Window
	for t := req.Start; t < req.End; {
		if err := ctx.Err(); err != nil {
			return windows, err
		}

		look, err := req.lookAt(t)
		if err != nil {
			return windows, err
		}
		if look.ElevationDeg < req.Mask.MinElevationDeg {
			t += req.CoarseStep
			continue
		}

		// Back up one coarse step to catch the rise.
		w, setTime, ok, err := req.refine(ctx, max(t-req.CoarseStep, req.Start))
		if err != nil {
			return windows, err
		}
		t = setTime + req.CoarseStep
		if !ok {
			continue
		}
		windows = append(windows, w)
		if req.MaxWindows > 0 && len(windows) >= req.MaxWindows {
			break
		}
	}
	return windows, nil
}

// refine fine-scans from the given time to the first rise and the following
// set. It returns the window, the set time, and false if the fine scan never
// saw the target above the mask.
func (req Request) refine(ctx context.Context, from float64) (Window, float64, bool, error) {
	var (
		w        Window
		risen    bool
		lastLook transform.LookAngles
	)

	t := from
	for ; t < req.End; t += req.FineStep {
		if err := ctx.Err(); err != nil {
			return Window{}, 0, false, err
		}
		look, err := req.lookAt(t)
		if err != nil {
			return Window{}, 0, false, err
		}
		above := look.ElevationDeg >= req.Mask.MinElevationDeg

		switch {
		case above && !risen:
			risen = true
			w.Start = t
			w.StartAzimuth = look.AzimuthDeg
			w.MaxElevation = look.ElevationDeg
			w.MaxElevationTime = t
			w.AzimuthAtMax = look.AzimuthDeg
			w.MinRangeM = look.RangeM
		case above:
			if look.ElevationDeg > w.MaxElevation {
				w.MaxElevation = look.ElevationDeg
				w.MaxElevationTime = t
				w.AzimuthAtMax = look.AzimuthDeg
			}
			w.MinRangeM = min(w.MinRangeM, look.RangeM)
		case risen:
			w.End = t
			w.EndAzimuth = look.AzimuthDeg
			return req.finish(w), t, true, nil
		}
		lastLook = look
	}

	if !risen {
		return Window{}, t, false, nil
	}
	// Still above at the end of the search interval.
	w.End = req.End
	w.EndAzimuth = lastLook.AzimuthDeg
	return req.finish(w), req.End, true, nil
}

func (req Request) finish(w Window) Window {
	w.DurationSeconds = w.End - w.Start
	w.StartUTC = transform.TimeFromJ2000Seconds(w.Start).Format(time.RFC3339)
	w.EndUTC = transform.TimeFromJ2000Seconds(w.End).Format(time.RFC3339)
	return w
}

func (req Request) lookAt(t float64) (transform.LookAngles, error) {
	var target ephemeris.State
	if req.Link != nil {
		sol, err := req.Link.Solve(t, true)
		if err != nil {
			return transform.LookAngles{}, err
		}
		target = sol.Transmitter.State
	} else {
		target = req.Target.StateAt(t)
	}
	if !target.IsFinite() {
		return transform.LookAngles{}, fmt.Errorf("%w: target at t=%.3f", lighttime.ErrInvalidState, t)
	}
	return req.Mask.LookAngles(t, target), nil
}
