package fsys

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Directories that are never worth analyzing, independent of configuration.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".fathom":      true,
	"node_modules": true,
	"vendor":       true,
	"bin":          true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"target":       true,
	".cache":       true,
	"__pycache__":  true,
}

// Excluder decides which paths the scanner skips. User patterns use
// gitignore semantics; the built-in skip set applies on top of them.
type Excluder struct {
	matcher *ignore.GitIgnore
}

// NewExcluder compiles the given patterns. An empty pattern list yields an
// excluder that only applies the built-in skips.
func NewExcluder(patterns []string) *Excluder {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return &Excluder{}
	}
	return &Excluder{matcher: ignore.CompileIgnoreLines(cleaned...)}
}

// SkipDir reports whether a directory should be pruned from the walk.
// name is the bare directory name, relPath the slash-separated tree path.
func (e *Excluder) SkipDir(name, relPath string) bool {
	if skipDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	return e.match(relPath + "/")
}

// SkipFile reports whether a file should be left out of the tree.
func (e *Excluder) SkipFile(name, relPath string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return e.match(relPath)
}

func (e *Excluder) match(relPath string) bool {
	if e.matcher == nil || relPath == "" || relPath == "/" {
		return false
	}
	return e.matcher.MatchesPath(relPath)
}
