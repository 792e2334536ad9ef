package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fathom/internal/watcher"
)

var (
	refreshWatch         bool
	refreshWatchInterval time.Duration
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-analyze what changed since the last snapshot",
	Long: `Loads the last snapshot, diffs it against the tree on disk and re-runs
only the affected analyzers on the changed files. Without a usable
snapshot this falls back to a full analysis.

Examples:
  fathom refresh
  fathom refresh --watch
  fathom refresh --watch --watch-interval 10s`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false, "Keep running and refresh when the tree changes")
	refreshCmd.Flags().DurationVar(&refreshWatchInterval, "watch-interval", 0,
		"Poll interval in watch mode (default: configured pollIntervalMs)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	u, stats, err := rt.service.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	printRunSummary("Refreshed", u, stats)

	// watch.enabled in the config keeps watching without the flag.
	if !refreshWatch && !rt.cfg.Watch.Enabled {
		return nil
	}
	return runWatchLoop(cmd, rt)
}

// runWatchLoop keeps refreshing until interrupted. Change detection and
// debouncing live in the watcher; this only wires signals and output.
func runWatchLoop(cmd *cobra.Command, rt *runtime) error {
	interval := time.Duration(rt.cfg.Watch.PollIntervalMs) * time.Millisecond
	if cmd.Flags().Changed("watch-interval") {
		interval = refreshWatchInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	debounce := time.Duration(rt.cfg.Watch.DebounceMs) * time.Millisecond

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	fmt.Printf("Watching for changes... (polling every %s, Ctrl+C to stop)\n", interval)

	w := watcher.New(rt.service.RootHash, func(ctx context.Context) {
		u, stats, err := rt.service.Refresh(ctx)
		if err != nil {
			rt.logger.Error("Refresh failed", "error", err)
			return
		}
		printRunSummary("Refreshed", u, stats)
	}, interval, debounce, rt.logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
