package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fathom/internal/slogutil"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(50 * time.Millisecond)

	for range 5 {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(200 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("burst of 5 triggers ran %d times, want 1", got)
	}
}

func TestDebouncerLastFunctionWins(t *testing.T) {
	done := make(chan string, 2)
	d := NewDebouncer(20 * time.Millisecond)

	d.Trigger(func() { done <- "first" })
	d.Trigger(func() { done <- "second" })

	select {
	case got := <-done:
		if got != "second" {
			t.Errorf("ran %q, want the replacement", got)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced function never ran")
	}
	select {
	case got := <-done:
		t.Errorf("second execution %q, want none", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(50 * time.Millisecond)

	d.Trigger(func() { calls.Add(1) })
	d.Cancel()
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("cancelled trigger still ran %d times", got)
	}
}

func TestDebouncerFlush(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour)

	d.Trigger(func() { calls.Add(1) })
	d.Flush()

	if got := calls.Load(); got != 1 {
		t.Fatalf("flush ran %d times, want 1", got)
	}
	d.Flush()
	if got := calls.Load(); got != 1 {
		t.Errorf("second flush reran the function: %d calls", got)
	}
}

// hashSource is a mutable scan target for watcher tests. Scan reads the
// current value and reports it on the scanned channel, so tests can sequence
// mutations against poll cycles without guessing at sleeps.
type hashSource struct {
	mu      sync.Mutex
	value   string
	err     error
	scanned chan string
}

func newHashSource(initial string) *hashSource {
	return &hashSource{value: initial, scanned: make(chan string, 64)}
}

func (s *hashSource) scan() (string, error) {
	s.mu.Lock()
	h, err := s.value, s.err
	s.mu.Unlock()
	select {
	case s.scanned <- h:
	default:
	}
	return h, err
}

func (s *hashSource) set(h string) {
	s.mu.Lock()
	s.value = h
	s.mu.Unlock()
}

func (s *hashSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *hashSource) awaitScan(t *testing.T) {
	t.Helper()
	select {
	case <-s.scanned:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher stopped scanning")
	}
}

func startWatcher(t *testing.T, src *hashSource, refreshed chan struct{}) (context.CancelFunc, chan error) {
	t.Helper()
	w := New(src.scan, func(context.Context) { refreshed <- struct{}{} },
		5*time.Millisecond, 15*time.Millisecond, slogutil.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestWatcherRefreshesOnChange(t *testing.T) {
	src := newHashSource("v1")
	refreshed := make(chan struct{}, 8)
	startWatcher(t, src, refreshed)

	// First scan is the baseline; only after it does a change count.
	src.awaitScan(t)
	src.set("v2")

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh after the tree changed")
	}

	// A further change triggers again: the watcher tracks the new hash.
	src.set("v3")
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh after the second change")
	}
}

func TestWatcherIgnoresStableTree(t *testing.T) {
	src := newHashSource("steady")
	refreshed := make(chan struct{}, 8)
	startWatcher(t, src, refreshed)

	// Let a number of polls pass with nothing changing.
	for range 6 {
		src.awaitScan(t)
	}
	select {
	case <-refreshed:
		t.Fatal("refresh fired with no change")
	default:
	}
}

func TestWatcherSkipsFailedScans(t *testing.T) {
	src := newHashSource("v1")
	refreshed := make(chan struct{}, 8)
	startWatcher(t, src, refreshed)

	src.awaitScan(t)
	src.fail(errors.New("disk gone"))
	for range 3 {
		src.awaitScan(t)
	}
	src.fail(nil)

	// Recovery with the same hash is not a change.
	for range 3 {
		src.awaitScan(t)
	}
	select {
	case <-refreshed:
		t.Fatal("refresh fired off a failed or recovered scan with no change")
	default:
	}

	src.set("v2")
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not survive scan failures")
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	src := newHashSource("v1")
	refreshed := make(chan struct{}, 8)
	cancel, errCh := startWatcher(t, src, refreshed)

	src.awaitScan(t)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
