// Package model defines the entities that make up a codebase understanding:
// the scanned file tree, extracted code nodes and relationships, discovered
// patterns, dependencies, data flows, concepts, semantic units and clusters,
// plus the UnifiedUnderstanding container that holds them all.
//
// Entities carry content hashes so incremental runs can diff two
// understandings structurally. Hashes never cover entity IDs or timestamps;
// two analyses of identical content produce identical hashes even when IDs
// differ.
package model

import (
	"sort"
	"time"
)

// FileNode is a leaf of the scanned file tree.
type FileNode struct {
	Path        string            `json:"path"` // relative to the analysis root, slash-separated
	Name        string            `json:"name"`
	Size        int64             `json:"size"`
	ModTime     time.Time         `json:"modTime"`
	ContentHash string            `json:"contentHash,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Extension returns the file extension including the leading dot, or "".
func (f *FileNode) Extension() string {
	for i := len(f.Name) - 1; i >= 0; i-- {
		switch f.Name[i] {
		case '.':
			if i == 0 {
				return "" // dotfile, not an extension
			}
			return f.Name[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}

// DirectoryNode is an interior node of the scanned file tree. Its hash is
// derived from the hashes of its children, so a change anywhere below it
// changes the hash of every ancestor and nothing else.
type DirectoryNode struct {
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	ContentHash string            `json:"contentHash,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Files       []*FileNode       `json:"files,omitempty"`
	Directories []*DirectoryNode  `json:"directories,omitempty"`
}

// SortChildren orders files and subdirectories by name, recursively.
// Hashing and serialization depend on this ordering being stable.
func (d *DirectoryNode) SortChildren() {
	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Name < d.Files[j].Name })
	sort.Slice(d.Directories, func(i, j int) bool { return d.Directories[i].Name < d.Directories[j].Name })
	for _, sub := range d.Directories {
		sub.SortChildren()
	}
}

// FileSystemTree is the root of a scanned source tree plus aggregate counts.
type FileSystemTree struct {
	Root      *DirectoryNode `json:"root"`
	FileCount int            `json:"fileCount"`
	DirCount  int            `json:"dirCount"`
	TotalSize int64          `json:"totalSize"`
}

// Walk visits every file in the tree in sorted order. The visitor receives
// the containing directory and the file.
func (t *FileSystemTree) Walk(fn func(dir *DirectoryNode, file *FileNode)) {
	if t == nil || t.Root == nil {
		return
	}
	walkDir(t.Root, fn)
}

func walkDir(dir *DirectoryNode, fn func(*DirectoryNode, *FileNode)) {
	for _, f := range dir.Files {
		fn(dir, f)
	}
	for _, sub := range dir.Directories {
		walkDir(sub, fn)
	}
}

// AllFiles returns every file node in sorted traversal order.
func (t *FileSystemTree) AllFiles() []*FileNode {
	var out []*FileNode
	t.Walk(func(_ *DirectoryNode, f *FileNode) {
		out = append(out, f)
	})
	return out
}

// FileByPath finds a file node by its tree-relative path, or nil.
func (t *FileSystemTree) FileByPath(path string) *FileNode {
	var found *FileNode
	t.Walk(func(_ *DirectoryNode, f *FileNode) {
		if f.Path == path {
			found = f
		}
	})
	return found
}

// LanguageStructure groups the files of one detected language together with
// the evidence gathered about it.
type LanguageStructure struct {
	Name              string          `json:"name"`
	Extensions        []string        `json:"extensions"`
	FileCount         int             `json:"fileCount"`
	TotalSize         int64           `json:"totalSize"`
	DominantParadigms []string        `json:"dominantParadigms,omitempty"`
	FilesByPath       map[string]bool `json:"filesByPath,omitempty"`
}
