package engine

import (
	"log/slog"
	"runtime"
	"runtime/debug"
)

// Batch sizing bounds. The batcher adapts between floor and ceiling based on
// heap pressure against the configured memory limit.
const (
	batchFloor   = 4
	batchCeiling = 256
	batchDefault = 64
)

// Pressure bands as fractions of the memory limit.
const (
	pressureCritical = 0.90
	pressureHigh     = 0.75
	pressureLow      = 0.50
)

// batcher decides how many files the next content-analysis batch takes.
// Pressure is measured against the configured ceiling, not host memory, so
// behavior is reproducible across machines.
type batcher struct {
	size     int
	memLimit int64
	logger   *slog.Logger

	readMem func() int64 // swappable for tests
}

func newBatcher(initial int, memLimit int64, logger *slog.Logger) *batcher {
	if initial <= 0 {
		initial = batchDefault
	}
	if initial < batchFloor {
		initial = batchFloor
	}
	if initial > batchCeiling {
		initial = batchCeiling
	}
	return &batcher{
		size:     initial,
		memLimit: memLimit,
		logger:   logger,
		readMem:  heapAlloc,
	}
}

func heapAlloc() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc)
}

// next returns the size of the next batch, adjusting for current pressure.
func (b *batcher) next() int {
	if b.memLimit <= 0 {
		return b.size
	}
	used := b.readMem()
	ratio := float64(used) / float64(b.memLimit)

	switch {
	case ratio >= pressureCritical:
		b.size = batchFloor
		b.logger.Warn("Memory pressure critical, forcing minimum batch",
			"heapBytes", used, "limitBytes", b.memLimit)
		debug.FreeOSMemory()
	case ratio >= pressureHigh:
		b.size = max(batchFloor, b.size/2)
		b.logger.Debug("Memory pressure high, shrinking batch", "batchSize", b.size)
	case ratio <= pressureLow:
		b.size = min(batchCeiling, b.size*2)
	}
	return b.size
}

// afterBatch runs between batches. Under high pressure it nudges the
// collector so released content actually goes away.
func (b *batcher) afterBatch() {
	if b.memLimit <= 0 {
		return
	}
	if float64(b.readMem())/float64(b.memLimit) >= pressureHigh {
		runtime.GC()
	}
}
