package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jo11he/my-tudat/internal/api"
	"github.com/jo11he/my-tudat/internal/batch"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/passes"
	"github.com/jo11he/my-tudat/internal/scenario"
)

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "lighttime",
		Short: "Light-time solver for multi-leg radio links",
		Long: `lighttime solves the signal travel time along chains of link ends
(transmitter, retransmitters, receiver) described by a YAML scenario file.
Times are seconds since J2000.0 or RFC 3339 timestamps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSolveCmd(logger),
		newSeriesCmd(logger),
		newServeCmd(logger),
		newWindowsCmd(logger),
	)
	return root
}

// scenarioFlag binds --scenario with LIGHTTIME_SCENARIO as its default.
func scenarioFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVar(path, "scenario", loadScenarioPath(), "scenario file (env LIGHTTIME_SCENARIO)")
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return nil, errors.New("no scenario given: pass --scenario or set LIGHTTIME_SCENARIO")
	}
	return scenario.Load(path)
}

// resolveReference picks the reference link end: the flag when given,
// otherwise the scenario's own choice.
func resolveReference(sc *scenario.Scenario, flag string) (lighttime.LinkEndType, error) {
	if flag == "" {
		return sc.ReferenceLinkEnd()
	}
	return lighttime.ParseLinkEndType(flag)
}

func writeOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSolveCmd(logger *slog.Logger) *cobra.Command {
	var path, at, reference string

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve the chain at one epoch",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(path)
			if err != nil {
				return err
			}
			t, err := api.ParseTime(at)
			if err != nil {
				return err
			}
			ref, err := resolveReference(sc, reference)
			if err != nil {
				return err
			}
			chain, ancillary, err := sc.Build(logger)
			if err != nil {
				return err
			}
			sol, err := chain.SolveForLinkEnd(t, ref, ancillary)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), api.NewSolutionResponse(sol))
		},
	}
	scenarioFlag(cmd, &path)
	cmd.Flags().StringVar(&at, "time", "0", "epoch, seconds since J2000.0 or RFC 3339")
	cmd.Flags().StringVar(&reference, "reference", "", "reference link end role (default from scenario)")
	return cmd
}

func newSeriesCmd(logger *slog.Logger) *cobra.Command {
	var (
		path, start, reference string
		step                   float64
		count, workers         int
		warmStart              bool
	)

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Solve the chain over evenly spaced epochs",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(path)
			if err != nil {
				return err
			}
			t0, err := api.ParseTime(start)
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			ref, err := resolveReference(sc, reference)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = loadWorkers(logger)
			}

			runner := batch.NewRunner(func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
				return sc.Build(logger)
			}, batch.Config{
				Workers:   workers,
				Reference: ref,
				WarmStart: warmStart,
			}, logger)

			sols, err := runner.Run(cmd.Context(), batch.Epochs(t0, step, count))
			if err != nil {
				return err
			}
			resp := api.SeriesResponse{Count: len(sols), Solutions: make([]api.SolutionResponse, len(sols))}
			for i, sol := range sols {
				resp.Solutions[i] = api.NewSolutionResponse(sol)
			}
			return writeOutput(cmd.OutOrStdout(), resp)
		},
	}
	scenarioFlag(cmd, &path)
	cmd.Flags().StringVar(&start, "start", "0", "first epoch, seconds since J2000.0 or RFC 3339")
	cmd.Flags().Float64Var(&step, "step", 60, "spacing between epochs in seconds")
	cmd.Flags().IntVar(&count, "count", 10, "number of epochs")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (default env LIGHTTIME_WORKERS or NumCPU)")
	cmd.Flags().BoolVar(&warmStart, "warm-start", true, "seed each epoch with the previous solution")
	cmd.Flags().StringVar(&reference, "reference", "", "reference link end role (default from scenario)")
	return cmd
}

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var path, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(path)
			if err != nil {
				return err
			}
			authCfg, err := loadAuthConfig(logger)
			if err != nil {
				return fmt.Errorf("invalid auth configuration: %w", err)
			}
			ref, err := sc.ReferenceLinkEnd()
			if err != nil {
				return err
			}
			serveCfg := loadServeConfig(logger)
			if addr != "" {
				serveCfg.Addr = addr
			}

			srv := api.NewServer(api.Config{
				Addr:            serveCfg.Addr,
				Auth:            authCfg,
				Reference:       ref,
				Workers:         serveCfg.Workers,
				MaxSeriesEpochs: serveCfg.MaxSeriesEpochs,
			}, func() (*lighttime.MultiLegCalculator, *lighttime.AncillarySettings, error) {
				return sc.Build(logger)
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server", "addr", serveCfg.Addr, "scenario", path)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
	scenarioFlag(cmd, &path)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default env LIGHTTIME_HTTP_ADDR or :8080)")
	return cmd
}

func newWindowsCmd(logger *slog.Logger) *cobra.Command {
	var (
		path, station, target, start, end string
		coarse, fine                      float64
		maxWindows                        int
		lightTime                         bool
	)

	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List visibility windows of a link end from a ground station",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(path)
			if err != nil {
				return err
			}
			si, ok := sc.LinkEndIndexByName(station)
			if !ok {
				return fmt.Errorf("unknown station link end %q", station)
			}
			ti, ok := sc.LinkEndIndexByName(target)
			if !ok {
				return fmt.Errorf("unknown target link end %q", target)
			}
			t0, err := api.ParseTime(start)
			if err != nil {
				return err
			}
			t1, err := api.ParseTime(end)
			if err != nil {
				return err
			}

			mask, err := sc.Viability(si, logger)
			if err != nil {
				return err
			}
			providers, err := sc.Providers(logger)
			if err != nil {
				return err
			}

			req := passes.Request{
				Mask:       mask,
				Target:     providers[ti],
				Start:      t0,
				End:        t1,
				CoarseStep: coarse,
				FineStep:   fine,
				MaxWindows: maxWindows,
			}
			if lightTime {
				// The station receives at each scan time; the target is seen
				// where it was when the signal left it.
				req.Link = lighttime.NewCalculator(providers[ti], mask.Station,
					lighttime.WithLogger(logger),
					lighttime.WithPropagationSpeed(sc.PropagationSpeed),
				)
			}

			windows, err := passes.Find(cmd.Context(), req)
			if err != nil {
				return err
			}
			logger.Debug("windows found",
				"station", station,
				"target", target,
				"light_time", lightTime,
				"count", len(windows),
			)
			return writeOutput(cmd.OutOrStdout(), windows)
		},
	}
	scenarioFlag(cmd, &path)
	cmd.Flags().StringVar(&station, "station", "", "ground-station link end name")
	cmd.Flags().StringVar(&target, "target", "", "target link end name")
	cmd.Flags().StringVar(&start, "start", "0", "search start, seconds since J2000.0 or RFC 3339")
	cmd.Flags().StringVar(&end, "end", "86400", "search end, seconds since J2000.0 or RFC 3339")
	cmd.Flags().Float64Var(&coarse, "coarse-step", 30, "coarse scan step in seconds")
	cmd.Flags().Float64Var(&fine, "fine-step", 1, "edge refinement step in seconds")
	cmd.Flags().IntVar(&maxWindows, "max", 0, "stop after this many windows (0 means no limit)")
	cmd.Flags().BoolVar(&lightTime, "light-time", false, "place the target at its light-time corrected emission time")
	return cmd
}
