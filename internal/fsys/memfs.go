package fsys

import (
	"os"
	"sort"
	"strings"
	"time"
)

// MemFS is an in-memory FS keyed by slash-separated relative paths. It backs
// engine and analyzer tests without touching the disk.
type MemFS struct {
	files map[string][]byte
	mod   time.Time
}

// NewMemFS creates a MemFS from path -> content. Parent directories are
// implied by the paths.
func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{files: make(map[string][]byte, len(files)), mod: time.Now().UTC()}
	for p, c := range files {
		m.files[strings.TrimPrefix(p, "./")] = []byte(c)
	}
	return m
}

// WriteFile adds or replaces a file.
func (m *MemFS) WriteFile(path string, content []byte) {
	m.files[strings.TrimPrefix(path, "./")] = content
	m.mod = time.Now().UTC()
}

// RemoveFile deletes a file if present.
func (m *MemFS) RemoveFile(path string) {
	delete(m.files, strings.TrimPrefix(path, "./"))
	m.mod = time.Now().UTC()
}

// ListDirectory returns the immediate children of path.
func (m *MemFS) ListDirectory(path string) ([]Entry, error) {
	prefix := normalizeDir(path)
	seen := make(map[string]bool)
	var out []Entry
	found := prefix == ""
	for p := range m.files {
		if prefix != "" {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			p = strings.TrimPrefix(p, prefix)
		}
		found = true
		if idx := strings.IndexByte(p, '/'); idx >= 0 {
			name := p[:idx]
			if !seen[name] {
				seen[name] = true
				out = append(out, Entry{Name: name, IsDir: true})
			}
		} else if !seen[p] {
			seen[p] = true
			out = append(out, Entry{Name: p, IsDir: false})
		}
	}
	if !found {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns a file's content.
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[strings.TrimPrefix(path, "./")]
	if !ok {
		return nil, &os.PathError{Op: "read", Path: path, Err: os.ErrNotExist}
	}
	return data, nil
}

// Stat returns metadata for a file or implied directory.
func (m *MemFS) Stat(path string) (Info, error) {
	p := strings.TrimPrefix(path, "./")
	if data, ok := m.files[p]; ok {
		return Info{Size: int64(len(data)), ModTime: m.mod}, nil
	}
	prefix := normalizeDir(p)
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			return Info{IsDir: true, ModTime: m.mod}, nil
		}
	}
	return Info{}, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func normalizeDir(path string) string {
	path = strings.TrimPrefix(path, "./")
	if path == "" || path == "." {
		return ""
	}
	return strings.TrimSuffix(path, "/") + "/"
}
