package patterns

import (
	"fmt"
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/model"
)

const (
	archBaseConfidence     = 0.3
	archHitWeight          = 0.4
	archCorroborationBonus = 0.2
	archMaxConfidence      = 0.95
)

// structuralPatterns registers the dominant child composition per container
// type. File nodes are excluded here; file-level composition is what
// organization patterns express.
func (a *Analyzer) structuralPatterns(ac *engine.Context, nodes []*model.CodeNode, dominance float64) int {
	population := make(map[model.NodeType]int)
	profiles := make(map[model.NodeType]map[string][]*model.CodeNode)
	total := 0

	for _, n := range nodes {
		if n.Type == model.NodeFile || len(n.Children) == 0 {
			continue
		}
		population[n.Type]++
		total++
		addMember(profiles, n.Type, childProfile(n), n)
	}

	registered := 0
	for _, typ := range sortedTypes(population) {
		if population[typ] < minCensusPopulation {
			continue
		}
		profile, members := dominantGroup(profiles[typ])
		if profile == "" {
			continue
		}
		coverage := float64(len(members)) / float64(population[typ])
		if coverage < dominance {
			continue
		}
		childTypes := strings.Split(profile, "+")
		p := &model.CodePattern{
			ID:         "pat:structure:" + string(typ) + ":" + profile,
			Type:       model.PatternStructural,
			Name:       fmt.Sprintf("%s containing %s", typ, strings.Join(childTypes, ", ")),
			Signature:  model.PatternSignature{NodeType: typ, ChildTypes: childTypes},
			Instances:  instancesOf(members),
			Confidence: coverage,
			Frequency:  len(members),
			Importance: importance(len(members), total),
		}
		a.hasher.HashPattern(p)
		ac.AddPattern(p)
		registered++
	}
	return registered
}

// childProfile is the sorted set of distinct child types, a composition
// signature.
func childProfile(n *model.CodeNode) string {
	seen := make(map[string]bool, len(n.Children))
	var types []string
	for _, c := range n.Children {
		if !seen[string(c.Type)] {
			seen[string(c.Type)] = true
			types = append(types, string(c.Type))
		}
	}
	sort.Strings(types)
	return strings.Join(types, "+")
}

// organizationPatterns registers directories whose files hold one dominant
// kind of declaration. Files without extracted declarations stay out of the
// census.
func (a *Analyzer) organizationPatterns(ac *engine.Context, u *model.UnifiedUnderstanding,
	roots map[string]*model.CodeNode, dominance float64) int {
	type dirCensus struct {
		population int
		byType     map[model.NodeType][]*model.CodeNode
	}
	dirs := make(map[string]*dirCensus)
	totalFiles := 0

	u.FileSystem.Walk(func(dir *model.DirectoryNode, f *model.FileNode) {
		root := roots[f.Path]
		if root == nil {
			return
		}
		typ := fileDominantType(root)
		if typ == "" {
			return
		}
		c := dirs[dir.Path]
		if c == nil {
			c = &dirCensus{byType: make(map[model.NodeType][]*model.CodeNode)}
			dirs[dir.Path] = c
		}
		c.population++
		totalFiles++
		c.byType[typ] = append(c.byType[typ], root)
	})

	paths := make([]string, 0, len(dirs))
	for p := range dirs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	registered := 0
	for _, dirPath := range paths {
		c := dirs[dirPath]
		if c.population < minCensusPopulation {
			continue
		}
		typ, members := dominantTypeGroup(c.byType)
		coverage := float64(len(members)) / float64(c.population)
		if coverage < dominance {
			continue
		}
		p := &model.CodePattern{
			ID:         "pat:org:" + dirPath + ":" + string(typ),
			Type:       model.PatternOrganization,
			Name:       fmt.Sprintf("%s holds %s files", dirPath, typ),
			Signature:  model.PatternSignature{NodeType: typ, Directory: dirPath},
			Instances:  instancesOf(members),
			Confidence: coverage,
			Frequency:  len(members),
			Importance: importance(len(members), totalFiles),
		}
		a.hasher.HashPattern(p)
		ac.AddPattern(p)
		registered++
	}
	return registered
}

// fileDominantType is the most common top level declaration type in a file,
// or "" for files with none. Ties go to the lexicographically smaller type.
func fileDominantType(root *model.CodeNode) model.NodeType {
	counts := make(map[model.NodeType]int)
	for _, c := range root.Children {
		counts[c.Type]++
	}
	var best model.NodeType
	bestCount := 0
	for _, typ := range sortedTypes(counts) {
		if counts[typ] > bestCount {
			best, bestCount = typ, counts[typ]
		}
	}
	return best
}

func dominantTypeGroup(byType map[model.NodeType][]*model.CodeNode) (model.NodeType, []*model.CodeNode) {
	types := make([]model.NodeType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var best model.NodeType
	var members []*model.CodeNode
	for _, t := range types {
		if len(byType[t]) > len(members) {
			best, members = t, byType[t]
		}
	}
	return best, members
}

// architecturePatterns tests directory names against the architecture
// vocabularies. A hit registers on its own; dependency direction between the
// matched layers corroborates it, raising confidence when import edges only
// ever flow one way between any two layers.
func (a *Analyzer) architecturePatterns(ac *engine.Context, u *model.UnifiedUnderstanding,
	roots map[string]*model.CodeNode) int {
	tree := u.FileSystem
	if tree == nil || tree.Root == nil {
		return 0
	}

	var dirs []*model.DirectoryNode
	var collect func(d *model.DirectoryNode)
	collect = func(d *model.DirectoryNode) {
		dirs = append(dirs, d)
		for _, sub := range d.Directories {
			collect(sub)
		}
	}
	for _, sub := range tree.Root.Directories {
		collect(sub)
	}
	if len(dirs) == 0 {
		return 0
	}

	vocabularies := ac.Vocab().Architecture.Vocabularies
	styles := make([]string, 0, len(vocabularies))
	for s := range vocabularies {
		styles = append(styles, s)
	}
	sort.Strings(styles)

	registered := 0
	for _, style := range styles {
		words := vocabularies[style]
		hitWords := make(map[string]bool)
		var matched []*model.DirectoryNode
		for _, d := range dirs {
			name := strings.ToLower(d.Name)
			for _, w := range words {
				if name == strings.ToLower(w) {
					hitWords[w] = true
					matched = append(matched, d)
					break
				}
			}
		}
		if len(hitWords) == 0 {
			continue
		}

		conf := archBaseConfidence + archHitWeight*float64(len(hitWords))/float64(len(words))
		if oneWayLayers(u, matched) {
			conf = min(archMaxConfidence, conf+archCorroborationBonus)
		}

		var members []*model.CodeNode
		for _, d := range matched {
			for _, f := range d.Files {
				if root := roots[f.Path]; root != nil {
					members = append(members, root)
				}
			}
		}

		p := &model.CodePattern{
			ID:         "pat:arch:" + style,
			Type:       model.PatternArchitecture,
			Name:       style + " architecture",
			Signature:  model.PatternSignature{Style: style},
			Instances:  instancesOf(members),
			Confidence: conf,
			Frequency:  len(matched),
			Importance: importance(len(matched), len(dirs)),
		}
		a.hasher.HashPattern(p)
		ac.AddPattern(p)
		registered++
	}
	return registered
}

// oneWayLayers reports whether file import edges between the matched layer
// directories exist and never flow both ways between the same pair.
func oneWayLayers(u *model.UnifiedUnderstanding, matched []*model.DirectoryNode) bool {
	layerOf := func(p string) string {
		best := ""
		for _, d := range matched {
			if strings.HasPrefix(p, d.Path+"/") && len(d.Path) > len(best) {
				best = d.Path
			}
		}
		return best
	}

	pairs := make(map[string]bool)
	found := false
	for _, r := range u.Relationships {
		if r.Type != model.RelImports && r.Type != model.RelDependsOn {
			continue
		}
		src, dst := u.CodeNodes[r.SourceID], u.CodeNodes[r.TargetID]
		if src == nil || dst == nil {
			continue
		}
		from, to := layerOf(src.Path), layerOf(dst.Path)
		if from == "" || to == "" || from == to {
			continue
		}
		found = true
		pairs[from+"\x00"+to] = true
	}
	if !found {
		return false
	}
	for pair := range pairs {
		from, to, _ := strings.Cut(pair, "\x00")
		if pairs[to+"\x00"+from] {
			return false
		}
	}
	return true
}
