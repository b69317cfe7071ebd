package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/jo11he/my-tudat/internal/auth"
)

// serveConfig holds the environment-derived settings of the serve command.
type serveConfig struct {
	Addr            string
	Workers         int
	MaxSeriesEpochs int
}

func loadLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LIGHTTIME_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadScenarioPath() string {
	return os.Getenv("LIGHTTIME_SCENARIO")
}

func loadWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("LIGHTTIME_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LIGHTTIME_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadServeConfig(logger *slog.Logger) serveConfig {
	cfg := serveConfig{
		Addr:            ":8080",
		Workers:         loadWorkers(logger),
		MaxSeriesEpochs: 10000,
	}

	if v := os.Getenv("LIGHTTIME_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("LIGHTTIME_MAX_SERIES_EPOCHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LIGHTTIME_MAX_SERIES_EPOCHS value, using default", "value", v, "default", cfg.MaxSeriesEpochs)
		} else {
			cfg.MaxSeriesEpochs = n
		}
	}

	logger.Info("serve config",
		"addr", cfg.Addr,
		"workers", cfg.Workers,
		"max_series_epochs", cfg.MaxSeriesEpochs,
	)

	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("LIGHTTIME_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("LIGHTTIME_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("LIGHTTIME_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("LIGHTTIME_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}
