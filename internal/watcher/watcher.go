// Package watcher triggers refreshes when the analyzed tree changes on disk.
//
// Change detection polls the root content hash rather than subscribing to
// file system events. Polling behaves identically on every platform and on
// network mounts, and the scan it needs is the same quick scan a refresh
// performs anyway.
package watcher

import (
	"context"
	"log/slog"
	"time"
)

// ScanFunc returns the current root content hash of the analyzed tree.
type ScanFunc func() (string, error)

// RefreshFunc runs one refresh after a change burst has settled.
type RefreshFunc func(ctx context.Context)

// Watcher polls the root hash and debounces bursts of changes into single
// refreshes.
type Watcher struct {
	scan     ScanFunc
	refresh  RefreshFunc
	interval time.Duration
	debounce *Debouncer
	logger   *slog.Logger

	lastHash string
}

// New creates a watcher. interval is the poll period, debounce the quiet
// period a change burst must observe before the refresh runs.
func New(scan ScanFunc, refresh RefreshFunc, interval, debounce time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		scan:     scan,
		refresh:  refresh,
		interval: interval,
		debounce: NewDebouncer(debounce),
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. The hash at entry becomes the baseline,
// so changes that predate Run never trigger a refresh.
func (w *Watcher) Run(ctx context.Context) error {
	if h, err := w.scan(); err == nil {
		w.lastHash = h
	} else {
		w.logger.Warn("Baseline scan failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.debounce.Cancel()

	w.logger.Info("Watching for changes",
		"pollInterval", w.interval.String(), "debounce", w.debounce.delay.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll compares the current root hash against the last seen one and arms the
// debouncer on a difference.
func (w *Watcher) poll(ctx context.Context) {
	h, err := w.scan()
	if err != nil {
		w.logger.Warn("Scan failed, skipping poll", "error", err.Error())
		return
	}
	if h == w.lastHash {
		return
	}
	w.lastHash = h
	w.logger.Debug("Tree changed", "rootHash", shortHash(h))

	w.debounce.Trigger(func() {
		if ctx.Err() != nil {
			return
		}
		w.refresh(ctx)
	})
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
