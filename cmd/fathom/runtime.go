package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fathom/internal/config"
	"fathom/internal/fsys"
	"fathom/internal/history"
	"fathom/internal/service"
	"fathom/internal/slogutil"
	"fathom/internal/snapshot"
)

// runtime bundles what every command needs: the resolved root, loaded
// config, logger and the analysis service with its stores.
type runtime struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	service *service.Service
	store   *snapshot.Store
	history *history.DB
}

// newRuntime resolves --root, loads and validates the config and wires up
// the service. A history database that fails to open disables run
// recording but never blocks analysis.
func newRuntime() (*runtime, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.RootPath = root
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	fs, err := fsys.NewOSFS(root)
	if err != nil {
		return nil, err
	}

	snapDir := filepath.Join(root, cfg.Snapshot.Dir)
	store := snapshot.NewStore(snapDir, cfg.Snapshot.Compress, logger)

	hist, err := history.Open(snapDir, logger)
	if err != nil {
		logger.Warn("Run history unavailable", "error", err)
		hist = nil
	}

	return &runtime{
		root:    root,
		cfg:     cfg,
		logger:  logger,
		service: service.New(cfg, fs, store, hist, logger),
		store:   store,
		history: hist,
	}, nil
}

func (rt *runtime) Close() {
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.logger.Warn("Closing run history failed", "error", err)
		}
	}
}

// newLogger builds the CLI logger. Explicit verbosity flags override the
// configured level; the configured format always applies.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if rootQuiet || rootVerbosity > 0 {
		level = slogutil.LevelFromVerbosity(rootVerbosity, rootQuiet)
	}
	if cfg.Logging.Format == "json" {
		return slogutil.NewJSONLogger(os.Stderr, level)
	}
	return slogutil.NewLogger(os.Stderr, level)
}
