package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fathom/internal/config"
)

var (
	analyzeExclude    []string
	analyzeMaxDepth   int
	analyzeBatchSize  int
	analyzeWorkers    int
	analyzeNoSemantic bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full analysis and write a fresh snapshot",
	Long: `Scans the tree, runs every analyzer and persists the resulting
understanding under .fathom/.

Examples:
  fathom analyze
  fathom analyze --exclude 'vendor/**' --workers 8
  fathom analyze --no-semantic`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeExclude, "exclude", nil, "Extra exclude patterns (gitignore syntax, repeatable)")
	analyzeCmd.Flags().IntVar(&analyzeMaxDepth, "max-depth", 0, "Limit directory depth (0 = unlimited)")
	analyzeCmd.Flags().IntVar(&analyzeBatchSize, "batch-size", 0, "Initial files per batch (0 = configured)")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Parallel workers (0 = CPU count)")
	analyzeCmd.Flags().BoolVar(&analyzeNoSemantic, "no-semantic", false, "Skip concept and semantic unit extraction")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	applyAnalyzeFlags(cmd, rt.cfg)

	u, stats, err := rt.service.Analyze(cmd.Context())
	if err != nil {
		return err
	}

	printRunSummary("Analyzed", u, stats)
	fmt.Printf("Snapshot: %s\n", rt.store.Path())
	return nil
}

// applyAnalyzeFlags overlays explicitly set CLI flags onto the loaded
// config. Unset flags leave the configured values alone.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	if len(analyzeExclude) > 0 {
		cfg.Analysis.Exclude = append(cfg.Analysis.Exclude, analyzeExclude...)
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.Analysis.MaxDepth = analyzeMaxDepth
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Analysis.BatchSize = analyzeBatchSize
	}
	if cmd.Flags().Changed("workers") {
		cfg.Analysis.Workers = analyzeWorkers
	}
	if analyzeNoSemantic {
		cfg.Analysis.SemanticAnalysis = false
	}
}
