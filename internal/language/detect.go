package language

import (
	"sort"
	"strings"

	"fathom/internal/model"
)

// siblingExtensions maps an extension onto the one it belongs with. These
// are pairs that split one language across header/source or script/module
// file roles.
var siblingExtensions = map[string]string{
	".h":   ".c",
	".hpp": ".cpp",
	".hxx": ".cxx",
	".hh":  ".cc",
	".mjs": ".js",
	".cjs": ".js",
	".kts": ".kt",
	".pyw": ".py",
}

// extGroup accumulates the files of one extension before merging.
type extGroup struct {
	ext   string
	files []*model.FileNode
	size  int64
	dirs  map[string]bool // parent directory paths
}

// detect builds the language map from a scanned tree: histogram by
// extension, merge related extensions, name languages by dominant stem.
func detect(tree *model.FileSystemTree) map[string]*model.LanguageStructure {
	langs := make(map[string]*model.LanguageStructure)
	if tree == nil {
		return langs
	}

	groups := make(map[string]*extGroup)
	tree.Walk(func(dir *model.DirectoryNode, f *model.FileNode) {
		ext := strings.ToLower(f.Extension())
		if ext == "" {
			return
		}
		g, ok := groups[ext]
		if !ok {
			g = &extGroup{ext: ext, dirs: make(map[string]bool)}
			groups[ext] = g
		}
		g.files = append(g.files, f)
		g.size += f.Size
		g.dirs[dir.Path] = true
	})

	for from, to := range mergeTargets(groups) {
		src, dst := groups[from], groups[to]
		dst.files = append(dst.files, src.files...)
		dst.size += src.size
		for d := range src.dirs {
			dst.dirs[d] = true
		}
		delete(groups, from)
	}

	for _, g := range groups {
		lang := &model.LanguageStructure{
			Name:        strings.TrimPrefix(g.ext, "."),
			FileCount:   len(g.files),
			TotalSize:   g.size,
			FilesByPath: make(map[string]bool, len(g.files)),
		}
		exts := map[string]bool{}
		for _, f := range g.files {
			lang.FilesByPath[f.Path] = true
			exts[strings.ToLower(f.Extension())] = true
		}
		for e := range exts {
			lang.Extensions = append(lang.Extensions, e)
		}
		sort.Strings(lang.Extensions)
		langs[lang.Name] = lang
	}
	return langs
}

// mergeTargets decides which extensions fold into which. Three rules, in
// order: an extension that is another plus a trailing x joins it (.tsx
// joins .ts); known sibling pairs join (.h joins .c); an extension whose
// stem extends another's joins it when their files share parent
// directories. Chains are resolved so every source maps to a surviving
// target.
func mergeTargets(groups map[string]*extGroup) map[string]string {
	targets := make(map[string]string)

	exts := make([]string, 0, len(groups))
	for ext := range groups {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		// Extended-syntax variants: .tsx -> .ts, .jsx -> .js. Only a
		// trailing x qualifies; .md and .m stay distinct languages.
		if len(ext) > 2 && ext[len(ext)-1] == 'x' {
			base := ext[:len(ext)-1]
			if _, ok := groups[base]; ok {
				targets[ext] = base
				continue
			}
		}
		if base, ok := siblingExtensions[ext]; ok {
			if _, present := groups[base]; present {
				targets[ext] = base
				continue
			}
		}
		// Longer related stem corroborated by shared directories.
		if base := directoryKin(ext, groups); base != "" {
			targets[ext] = base
		}
	}

	// Follow chains (.tsx -> .ts -> elsewhere) to a fixed point.
	for from := range targets {
		to := targets[from]
		for {
			next, ok := targets[to]
			if !ok {
				break
			}
			to = next
		}
		targets[from] = to
	}
	return targets
}

// directoryKin looks for an extension one stem character shorter than this
// one (.pyi against .py) whose files live in at least half the same
// directories. Both signals must hold: .cpp never joins .c on stems alone,
// docs never join co-located source on directories alone.
func directoryKin(ext string, groups map[string]*extGroup) string {
	g := groups[ext]
	stem := strings.TrimPrefix(ext, ".")

	best := ""
	for other, og := range groups {
		if other == ext || len(og.files) < len(g.files) {
			continue
		}
		otherStem := strings.TrimPrefix(other, ".")
		if len(stem) != len(otherStem)+1 || !strings.HasPrefix(stem, otherStem) {
			continue
		}
		if dirOverlap(g.dirs, og.dirs) < 0.5 {
			continue
		}
		if best == "" || len(groups[best].files) < len(og.files) {
			best = other
		}
	}
	return best
}

// dirOverlap is the fraction of a's directories that also appear in b.
func dirOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for d := range a {
		if b[d] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}
