//go:build !cgo

package structure

import "context"

// preciseExtractor is the tree-sitter extraction seam. This stub is compiled
// when cgo is not available; extraction falls back to the line heuristics.
type preciseExtractor struct{}

// newPreciseExtractor returns nil when cgo is not available.
func newPreciseExtractor() *preciseExtractor { return nil }

// preciseAvailable reports whether tree-sitter extraction is compiled in.
func preciseAvailable() bool { return false }

func (e *preciseExtractor) extract(ctx context.Context, path, name, ext string, content []byte) (*extraction, bool) {
	return nil, false
}
