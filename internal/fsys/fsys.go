// Package fsys is the filesystem boundary of the engine. Analysis code never
// touches the OS directly; it goes through the FS interface so tests can run
// against an in-memory tree and the scanner stays portable.
package fsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry is one name inside a directory listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Info is the subset of file metadata the engine needs.
type Info struct {
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FS is the minimal filesystem surface the engine depends on. Paths are
// relative to the analysis root and slash-separated.
type FS interface {
	ListDirectory(path string) ([]Entry, error)
	ReadFile(path string) ([]byte, error)
	Stat(path string) (Info, error)
}

// OSFS implements FS over the real filesystem, rooted at an absolute
// directory. All paths passed in are interpreted relative to that root.
type OSFS struct {
	root string
}

// NewOSFS creates an FS rooted at root. Root must be an existing directory.
func NewOSFS(root string) (*OSFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &OSFS{root: abs}, nil
}

// Root returns the absolute root directory.
func (o *OSFS) Root() string { return o.root }

func (o *OSFS) abs(path string) string {
	if path == "" || path == "." {
		return o.root
	}
	return filepath.Join(o.root, filepath.FromSlash(path))
}

// ListDirectory returns the entries of a directory, sorted by name.
func (o *OSFS) ListDirectory(path string) ([]Entry, error) {
	entries, err := os.ReadDir(o.abs(path))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		// Symlinks are skipped entirely so cycles cannot occur.
		if e.Type()&os.ModeSymlink != 0 {
			continue
		}
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns the contents of a file.
func (o *OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(o.abs(path))
}

// Stat returns metadata for a path.
func (o *OSFS) Stat(path string) (Info, error) {
	fi, err := os.Stat(o.abs(path))
	if err != nil {
		return Info{}, err
	}
	return Info{IsDir: fi.IsDir(), Size: fi.Size(), ModTime: fi.ModTime().UTC()}, nil
}
