// Package service wires scanning, the analyzer pipeline, snapshot
// persistence and run history behind two entry points: a full analysis and
// an incremental refresh against the previous snapshot.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fathom/internal/cluster"
	"fathom/internal/config"
	"fathom/internal/dataflow"
	"fathom/internal/engine"
	"fathom/internal/fsys"
	"fathom/internal/history"
	"fathom/internal/imports"
	"fathom/internal/incremental"
	"fathom/internal/language"
	"fathom/internal/model"
	"fathom/internal/patterns"
	"fathom/internal/semantic"
	"fathom/internal/snapshot"
	"fathom/internal/structure"
)

// Service runs analyses against one repository root.
type Service struct {
	cfg     *config.Config
	fs      fsys.FS
	store   *snapshot.Store
	history *history.DB
	logger  *slog.Logger

	hasher *incremental.Hasher
	vocab  *config.Vocab
}

// New creates a service. store and hist may be nil, which disables snapshot
// persistence and run recording respectively.
func New(cfg *config.Config, fs fsys.FS, store *snapshot.Store, hist *history.DB, logger *slog.Logger) *Service {
	vocab, err := config.LoadVocab(cfg.RootPath)
	if err != nil {
		logger.Warn("Ignoring unreadable vocabulary overrides", "error", err.Error())
		vocab = config.DefaultVocab()
	}
	return &Service{
		cfg:     cfg,
		fs:      fs,
		store:   store,
		history: hist,
		logger:  logger,
		hasher:  incremental.NewHasher(),
		vocab:   vocab,
	}
}

// Scanner builds the scanner full scans and refresh quick-scans share.
func (s *Service) Scanner() *fsys.Scanner {
	return fsys.NewScanner(s.fs, fsys.NewExcluder(s.cfg.Analysis.Exclude),
		s.hasher.HashBytes, s.cfg.Analysis.MaxDepth, s.logger)
}

// newCoordinator registers the seven analyzers in dependency order.
func (s *Service) newCoordinator() (*engine.Coordinator, error) {
	coord := engine.NewCoordinator(s.Scanner())
	for _, a := range []engine.Analyzer{
		language.NewAnalyzer(s.logger),
		structure.NewAnalyzer(s.logger),
		imports.NewAnalyzer(s.logger),
		dataflow.NewAnalyzer(s.logger),
		patterns.NewAnalyzer(s.logger),
		semantic.NewAnalyzer(s.logger),
		cluster.NewAnalyzer(s.logger),
	} {
		if err := coord.Register(a); err != nil {
			return nil, fmt.Errorf("register analyzer: %w", err)
		}
	}
	return coord, nil
}

func (s *Service) newContext(ctx context.Context, u *model.UnifiedUnderstanding) *engine.Context {
	return engine.NewContext(ctx, s.fs, u, engine.OptionsFromConfig(s.cfg),
		s.cfg.Thresholds, s.vocab, s.logger)
}

// Analyze performs a full analysis from scratch, saves the snapshot and
// records the run.
func (s *Service) Analyze(ctx context.Context) (*model.UnifiedUnderstanding, *model.AnalysisStats, error) {
	coord, err := s.newCoordinator()
	if err != nil {
		return nil, nil, err
	}
	u := model.NewUnderstanding(s.cfg.RootPath)
	started := time.Now().UTC()

	s.logger.Info("Starting full analysis", "root", s.cfg.RootPath)
	stats, err := coord.Run(s.newContext(ctx, u))
	if err != nil {
		return nil, nil, fmt.Errorf("full analysis: %w", err)
	}
	s.logger.Info("Analysis complete",
		"files", stats.FilesIndexed, "nodes", stats.NodesExtracted, "tookMs", stats.TimeTakenMs)

	if err := s.persist(u, stats, history.ModeFull, started); err != nil {
		return u, stats, err
	}
	return u, stats, nil
}

// Refresh performs an incremental analysis on top of the last snapshot. With
// no usable snapshot it degrades to a full run.
func (s *Service) Refresh(ctx context.Context) (*model.UnifiedUnderstanding, *model.AnalysisStats, error) {
	prior, err := s.loadPrior()
	if err != nil {
		s.logger.Warn("No usable snapshot, falling back to full analysis", "error", err.Error())
		return s.Analyze(ctx)
	}

	coord, err := s.newCoordinator()
	if err != nil {
		return nil, nil, err
	}

	fresh, err := s.Scanner().Scan()
	if err != nil {
		return nil, nil, fmt.Errorf("refresh scan: %w", err)
	}
	s.hasher.HashTree(fresh)

	plan := s.plan(prior, fresh)
	s.logger.Info("Refresh planned",
		"reason", plan.Reason, "fullRun", plan.FullRun,
		"targets", len(plan.TargetFiles), "analyzers", len(plan.AnalyzersToRun))

	// The prior understanding stays intact; the run mutates a clone, so a
	// failed refresh never corrupts what the snapshot still holds.
	u := prior.Clone()
	started := time.Now().UTC()
	stats, err := coord.RunIncremental(s.newContext(ctx, u), plan, fresh)
	if err != nil {
		return nil, nil, fmt.Errorf("incremental analysis: %w", err)
	}

	mode := history.ModeIncremental
	if plan.FullRun {
		mode = history.ModeFull
	}
	if err := s.persist(u, stats, mode, started); err != nil {
		return u, stats, err
	}
	return u, stats, nil
}

// RootHash scans the tree and returns its content hash without analyzing
// anything. Watch mode polls this.
func (s *Service) RootHash() (string, error) {
	tree, err := s.Scanner().Scan()
	if err != nil {
		return "", fmt.Errorf("scan root: %w", err)
	}
	return s.hasher.HashTree(tree), nil
}

// Load returns the persisted understanding without running anything.
func (s *Service) Load() (*model.UnifiedUnderstanding, error) {
	return s.loadPrior()
}

func (s *Service) loadPrior() (*model.UnifiedUnderstanding, error) {
	if s.store == nil {
		return nil, snapshot.ErrNotFound
	}
	return s.store.Load()
}

// plan decides what the incremental run must redo. A configured scope in the
// analysis section pins the plan instead of diffing.
func (s *Service) plan(prior *model.UnifiedUnderstanding, fresh *model.FileSystemTree) *incremental.UpdatePlan {
	if len(s.cfg.Analysis.TargetFiles) > 0 || len(s.cfg.Analysis.AnalyzersToRun) > 0 {
		analyzers := s.cfg.Analysis.AnalyzersToRun
		if len(analyzers) == 0 {
			analyzers = incremental.AllAnalyzers
		}
		return &incremental.UpdatePlan{
			AnalyzersToRun: analyzers,
			TargetFiles:    s.cfg.Analysis.TargetFiles,
			Reason:         "configured scope",
		}
	}
	return incremental.NewPlanner(nil, s.logger).PlanUpdate(prior, fresh)
}

// persist saves the snapshot and records the run. A failed history insert is
// logged rather than returned; the analysis result is already on disk.
func (s *Service) persist(u *model.UnifiedUnderstanding, stats *model.AnalysisStats, mode string, started time.Time) error {
	if s.store != nil {
		if err := s.store.Save(u); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	if s.history != nil {
		run := &history.Run{
			Mode:       mode,
			StartedAt:  started,
			DurationMs: stats.TimeTakenMs,
			RootHash:   rootHash(u),
			Stats:      *stats,
		}
		if err := s.history.RecordRun(run); err != nil {
			s.logger.Warn("Failed to record run history", "error", err.Error())
		}
	}
	return nil
}

func rootHash(u *model.UnifiedUnderstanding) string {
	if u.FileSystem == nil || u.FileSystem.Root == nil {
		return ""
	}
	return u.FileSystem.Root.ContentHash
}
