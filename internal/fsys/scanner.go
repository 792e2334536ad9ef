package fsys

import (
	"fmt"
	"log/slog"
	"path"

	"fathom/internal/model"
)

// HashFunc computes the content hash of a file's bytes. Wired in by the
// caller so this package stays ignorant of the hash algorithm.
type HashFunc func(data []byte) string

// Scanner builds a model.FileSystemTree from an FS, applying exclusions and
// a depth limit as it goes.
type Scanner struct {
	fs       FS
	excluder *Excluder
	hash     HashFunc
	maxDepth int
	logger   *slog.Logger
}

// NewScanner creates a scanner. maxDepth <= 0 means unlimited. hash may be
// nil, in which case file content hashes are left empty.
func NewScanner(fs FS, excluder *Excluder, hash HashFunc, maxDepth int, logger *slog.Logger) *Scanner {
	if excluder == nil {
		excluder = NewExcluder(nil)
	}
	return &Scanner{
		fs:       fs,
		excluder: excluder,
		hash:     hash,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Scan walks the tree from the root. Failing to list the root is fatal;
// everything below it degrades to a logged skip.
func (s *Scanner) Scan() (*model.FileSystemTree, error) {
	root := &model.DirectoryNode{Path: ".", Name: "."}
	tree := &model.FileSystemTree{Root: root}

	entries, err := s.fs.ListDirectory(".")
	if err != nil {
		return nil, fmt.Errorf("list analysis root: %w", err)
	}
	tree.DirCount = 1
	s.scanInto(root, entries, 1, tree)
	root.SortChildren()
	return tree, nil
}

func (s *Scanner) scanInto(dir *model.DirectoryNode, entries []Entry, depth int, tree *model.FileSystemTree) {
	for _, e := range entries {
		relPath := childPath(dir.Path, e.Name)
		if e.IsDir {
			if s.excluder.SkipDir(e.Name, relPath) {
				continue
			}
			if s.maxDepth > 0 && depth >= s.maxDepth {
				continue
			}
			sub := &model.DirectoryNode{Path: relPath, Name: e.Name}
			subEntries, err := s.fs.ListDirectory(relPath)
			if err != nil {
				s.logger.Debug("Skipping unreadable directory", "path", relPath, "error", err.Error())
				continue
			}
			tree.DirCount++
			dir.Directories = append(dir.Directories, sub)
			s.scanInto(sub, subEntries, depth+1, tree)
			continue
		}

		if s.excluder.SkipFile(e.Name, relPath) {
			continue
		}
		info, err := s.fs.Stat(relPath)
		if err != nil {
			s.logger.Debug("Skipping unstattable file", "path", relPath, "error", err.Error())
			continue
		}
		file := &model.FileNode{
			Path:    relPath,
			Name:    e.Name,
			Size:    info.Size,
			ModTime: info.ModTime,
		}
		if s.hash != nil {
			data, err := s.fs.ReadFile(relPath)
			if err != nil {
				s.logger.Debug("Skipping unreadable file", "path", relPath, "error", err.Error())
				continue
			}
			file.ContentHash = s.hash(data)
		}
		tree.FileCount++
		tree.TotalSize += file.Size
		dir.Files = append(dir.Files, file)
	}
}

func childPath(parent, name string) string {
	if parent == "." || parent == "" {
		return name
	}
	return path.Join(parent, name)
}
