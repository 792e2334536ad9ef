package incremental

import (
	"fmt"
	"log/slog"

	"fathom/internal/model"
)

// Planner turns a tree diff into an update plan.
type Planner struct {
	config *Config
	differ *Differ
	logger *slog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(config *Config, logger *slog.Logger) *Planner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Planner{config: config, differ: NewDiffer(), logger: logger}
}

// PlanUpdate compares the previously analyzed tree with a freshly scanned
// one and decides what an incremental run must redo. The fresh tree needs
// content hashes only, no analysis.
func (p *Planner) PlanUpdate(old *model.UnifiedUnderstanding, fresh *model.FileSystemTree) *UpdatePlan {
	if old == nil || old.FileSystem == nil {
		return &UpdatePlan{FullRun: true, Reason: "no previous analysis"}
	}

	fileDiff := p.differ.CompareTrees(old.FileSystem, fresh)
	if fileDiff.Empty() {
		return &UpdatePlan{Reason: "no file changes"}
	}

	total := len(fileDiff.Unchanged) + fileDiff.ChangedCount()
	if total > 0 {
		ratio := float64(fileDiff.ChangedCount()) / float64(total)
		if ratio > p.config.FullRunThreshold {
			p.logger.Info("Change ratio above threshold, planning full run",
				"changed", fileDiff.ChangedCount(), "total", total)
			return &UpdatePlan{
				FullRun: true,
				Reason:  fmt.Sprintf("%d of %d files changed", fileDiff.ChangedCount(), total),
			}
		}
	}

	// Deleted files have no content to re-analyze but their entities must
	// go, which the coordinator handles off the target list.
	targets := make([]string, 0, len(fileDiff.Added)+len(fileDiff.Modified))
	targets = append(targets, fileDiff.Added...)
	targets = append(targets, fileDiff.Modified...)

	diff := &UnderstandingDiff{Files: fileDiff}
	return &UpdatePlan{
		AnalyzersToRun: CalculateAnalyzersToRun(diff),
		TargetFiles:    targets,
		DeletedFiles:   fileDiff.Deleted,
		Reason:         fmt.Sprintf("%d files changed", fileDiff.ChangedCount()),
	}
}

// PlanFromDiff builds a plan from an already computed understanding diff,
// for callers that diffed two full analyses themselves.
func (p *Planner) PlanFromDiff(diff *UnderstandingDiff) *UpdatePlan {
	if diff == nil || diff.Empty() {
		return &UpdatePlan{Reason: "no changes"}
	}
	targets := make([]string, 0, len(diff.Files.Added)+len(diff.Files.Modified))
	targets = append(targets, diff.Files.Added...)
	targets = append(targets, diff.Files.Modified...)
	return &UpdatePlan{
		AnalyzersToRun: CalculateAnalyzersToRun(diff),
		TargetFiles:    targets,
		DeletedFiles:   diff.Files.Deleted,
		Reason:         "entity diff",
	}
}
