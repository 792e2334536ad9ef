package imports

import (
	"path"
	"sort"
	"strings"

	"fathom/internal/model"
)

// resolver classifies module specifiers and resolves local ones against the
// scanned tree. Classification leans on path shape first and falls back to
// corpus frequency: a specifier imported from many unrelated directories
// that resolves nowhere in the tree behaves like a standard library module.
type resolver struct {
	paths      map[string]bool
	rootDirs   map[string]bool
	extensions []string                   // observed in the tree, most common first
	dirsBySpec map[string]map[string]bool // importer directories per specifier
}

func newResolver(u *model.UnifiedUnderstanding) *resolver {
	r := &resolver{
		paths:      map[string]bool{},
		rootDirs:   map[string]bool{},
		dirsBySpec: map[string]map[string]bool{},
	}
	if u.FileSystem == nil {
		return r
	}
	extCount := map[string]int{}
	for _, f := range u.FileSystem.AllFiles() {
		r.paths[f.Path] = true
		if i := strings.IndexByte(f.Path, '/'); i > 0 {
			r.rootDirs[f.Path[:i]] = true
		}
		if ext := strings.ToLower(f.Extension()); ext != "" {
			extCount[ext]++
		}
	}
	r.extensions = make([]string, 0, len(extCount))
	for ext := range extCount {
		r.extensions = append(r.extensions, ext)
	}
	sort.Slice(r.extensions, func(i, j int) bool {
		if extCount[r.extensions[i]] != extCount[r.extensions[j]] {
			return extCount[r.extensions[i]] > extCount[r.extensions[j]]
		}
		return r.extensions[i] < r.extensions[j]
	})
	return r
}

// record registers who imports a specifier, feeding the corpus census that
// classification consults.
func (r *resolver) record(sourcePath, spec string) {
	dir := path.Dir(sourcePath)
	if r.dirsBySpec[spec] == nil {
		r.dirsBySpec[spec] = map[string]bool{}
	}
	r.dirsBySpec[spec][dir] = true
}

// classify determines the dependency type of a specifier imported by
// sourcePath, resolving it to a concrete tree path when possible.
func (r *resolver) classify(sourcePath, spec string) (model.DependencyType, string, float64) {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		if resolved := r.resolveFrom(path.Dir(sourcePath), spec); resolved != "" {
			return model.DepLocalFile, resolved, 0.95
		}
		return model.DepLocalFile, "", 0.4
	}

	if strings.HasPrefix(spec, "@") {
		return model.DepExternalPackage, "", 0.85
	}

	trimmed := strings.TrimPrefix(spec, "/")
	first := trimmed
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		first = trimmed[:i]
	}
	if strings.Contains(first, ".") {
		// Host-shaped roots like github.com/... are third party.
		return model.DepExternalPackage, "", 0.85
	}

	if r.rootDirs[first] {
		if resolved := r.resolveFrom("", trimmed); resolved != "" {
			return model.DepInternalModule, resolved, 0.9
		}
		return model.DepInternalModule, "", 0.6
	}
	if resolved := r.resolveFrom("", trimmed); resolved != "" {
		return model.DepInternalModule, resolved, 0.7
	}

	if dirs := len(r.dirsBySpec[spec]); dirs >= stdlibMinDirs {
		return model.DepStandardLibrary, "", min(0.95, 0.5+0.1*float64(dirs))
	}
	return model.DepExternalPackage, "", 0.5
}

// resolveFrom probes the tree for a file the specifier could mean: the exact
// path, the path with an observed extension appended, then index-file and
// directory-stem fallbacks for directory imports.
func (r *resolver) resolveFrom(dir, spec string) string {
	target := path.Clean(path.Join(dir, spec))
	if target == "." || target == ".." || strings.HasPrefix(target, "../") {
		return ""
	}
	if r.paths[target] {
		return target
	}
	for _, ext := range r.extensions {
		if r.paths[target+ext] {
			return target + ext
		}
	}
	for _, ext := range r.extensions {
		if p := target + "/index" + ext; r.paths[p] {
			return p
		}
	}
	stem := path.Base(target)
	for _, ext := range r.extensions {
		if p := target + "/" + stem + ext; r.paths[p] {
			return p
		}
	}
	return ""
}
