// Package testutil provides shared helpers for tests that need real
// on-disk source trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree materializes files under a fresh temp directory and returns
// the directory path. Keys are slash-separated paths relative to the
// root; parent directories are created as needed. The tree is removed
// automatically when the test finishes.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for path, content := range files {
		WriteFile(t, root, path, content)
	}
	return root
}

// WriteFile creates or overwrites a single file inside an existing tree.
// Tests that simulate edits between scans use it to mutate the tree
// produced by WriteTree.
func WriteFile(t *testing.T, root, path, content string) {
	t.Helper()

	abs := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatalf("create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
