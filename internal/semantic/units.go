package semantic

import (
	"path"
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/model"
)

// formUnits groups code elements into semantic units using four strategies
// in fixed order: concept coherence, pattern membership, coupling growth,
// and directory cohesion. Units are deduplicated by member set, first
// strategy wins. Returns the number of units registered.
func (a *Analyzer) formUnits(ac *engine.Context) int {
	u := ac.Understanding()
	neighbors := nodeNeighbors(u)
	seen := map[string]bool{}
	registered := 0

	register := func(unit *model.SemanticUnit) {
		ids := append([]string(nil), unit.CodeNodeIDs...)
		sort.Strings(ids)
		sig := strings.Join(ids, "\x00")
		if seen[sig] {
			return
		}
		seen[sig] = true
		unit.CodeNodeIDs = ids
		unit.Properties.Size = len(ids)
		unit.ContentHash = a.hasher.HashSemanticUnit(unit)
		ac.AddSemanticUnit(unit)
		registered++
	}

	a.coherenceUnits(ac, neighbors, register)
	a.patternUnits(u, register)
	a.couplingUnits(ac, neighbors, register)
	a.directoryUnits(ac, neighbors, register)
	return registered
}

// coherenceUnits promotes a concept's element set to a unit when the set
// hangs together: few directories, dense internal edges, similar names.
func (a *Analyzer) coherenceUnits(ac *engine.Context, neighbors map[string]map[string]bool, register func(*model.SemanticUnit)) {
	u := ac.Understanding()
	gate := ac.Thresholds().CoherenceGate
	for _, c := range u.Concepts {
		if len(c.CodeElements) < minUnitSize {
			continue
		}
		coherence := a.coherence(u, c.CodeElements, neighbors)
		if coherence < gate {
			continue
		}
		dominant := dominantNodeType(c.CodeElements, u.CodeNodes)
		register(&model.SemanticUnit{
			ID:          "unit:concept:" + strings.TrimPrefix(c.ID, "concept:"),
			Type:        unitTypeFor(dominant, c.Name),
			Name:        c.Name,
			CodeNodeIDs: append([]string(nil), c.CodeElements...),
			Concepts:    []string{c.ID},
			Confidence:  coherence,
			Properties: model.SemanticProperties{
				Cohesion:         coherence,
				DominantConcept:  c.Name,
				DominantNodeType: dominant,
			},
		})
	}
}

// coherence averages three signals over a member set: directory spread
// (1 over the number of distinct directories), relationship density, and
// mean pairwise name-token similarity.
func (a *Analyzer) coherence(u *model.UnifiedUnderstanding, ids []string, neighbors map[string]map[string]bool) float64 {
	dirs := map[string]bool{}
	var names []string
	for _, id := range ids {
		n := u.CodeNodes[id]
		if n == nil {
			continue
		}
		dirs[path.Dir(n.Path)] = true
		names = append(names, n.Name)
	}
	if len(names) == 0 {
		return 0
	}
	dirSpread := 1.0 / float64(max(1, len(dirs)))
	return (dirSpread + density(ids, neighbors) + a.nameSimilarity(names)) / 3
}

// density is the share of possible undirected member pairs that are
// connected. A single member scores zero.
func density(ids []string, neighbors map[string]map[string]bool) float64 {
	n := len(ids)
	if n < 2 {
		return 0
	}
	edges := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if neighbors[ids[i]][ids[j]] {
				edges++
			}
		}
	}
	return float64(edges) / float64(n*(n-1)/2)
}

// nameSimilarity is the mean pairwise Jaccard similarity of significant
// name tokens. One name scores full similarity with itself.
func (a *Analyzer) nameSimilarity(names []string) float64 {
	if len(names) < 2 {
		return 1
	}
	sets := make([]map[string]bool, len(names))
	for i, name := range names {
		sets[i] = toSet(a.tk.significant(name))
	}
	total, pairs := 0.0, 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

// patternUnits lifts each discovered naming, structural or organization
// pattern into a pattern-group unit over its instances. Architecture
// patterns describe the whole tree and stay out.
func (a *Analyzer) patternUnits(u *model.UnifiedUnderstanding, register func(*model.SemanticUnit)) {
	for _, p := range u.Patterns {
		if p.Type == model.PatternArchitecture || len(p.Instances) < minUnitSize {
			continue
		}
		ids := make([]string, 0, len(p.Instances))
		for _, inst := range p.Instances {
			ids = append(ids, inst.NodeID)
		}
		register(&model.SemanticUnit{
			ID:          "unit:pattern:" + strings.TrimPrefix(p.ID, "pat:"),
			Type:        model.UnitPatternGroup,
			Name:        p.Name,
			CodeNodeIDs: ids,
			Confidence:  p.Confidence,
			Properties: model.SemanticProperties{
				Cohesion:         p.Confidence,
				DominantNodeType: p.Signature.NodeType,
			},
		})
	}
}

// couplingUnits grows units greedily along relationship edges: starting
// from each unvisited node, neighbors join while the group's density stays
// above the coupling threshold. Rejected candidates remain available as
// seeds for other groups.
func (a *Analyzer) couplingUnits(ac *engine.Context, neighbors map[string]map[string]bool, register func(*model.SemanticUnit)) {
	u := ac.Understanding()
	minDensity := ac.Thresholds().CouplingMinDensity

	ids := make([]string, 0, len(neighbors))
	for id := range neighbors {
		if u.CodeNodes[id] != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	visited := map[string]bool{}
	for _, seed := range ids {
		if visited[seed] {
			continue
		}
		members := []string{seed}
		visited[seed] = true
		frontier := sortedKeys(neighbors[seed])
		for len(frontier) > 0 {
			cand := frontier[0]
			frontier = frontier[1:]
			if visited[cand] || u.CodeNodes[cand] == nil {
				continue
			}
			trial := append(append([]string(nil), members...), cand)
			if density(trial, neighbors) < minDensity {
				continue
			}
			members = trial
			visited[cand] = true
			frontier = append(frontier, sortedKeys(neighbors[cand])...)
		}
		if len(members) < minCouplingSize {
			continue
		}
		sort.Strings(members)
		d := density(members, neighbors)
		dominant := dominantNodeType(members, u.CodeNodes)
		register(&model.SemanticUnit{
			ID:          "unit:coupling:" + a.hasher.HashFields(members...)[:12],
			Type:        unitTypeFor(dominant, ""),
			Name:        a.clusterName(u, members),
			CodeNodeIDs: members,
			Confidence:  d,
			Properties: model.SemanticProperties{
				Cohesion:         d,
				DominantNodeType: dominant,
			},
		})
	}
}

// clusterName picks the most common significant token across member names.
func (a *Analyzer) clusterName(u *model.UnifiedUnderstanding, ids []string) string {
	counts := map[string]int{}
	for _, id := range ids {
		if n := u.CodeNodes[id]; n != nil {
			for _, tok := range a.tk.significant(n.Name) {
				counts[tok]++
			}
		}
	}
	best, bestCount := "", 0
	for _, tok := range sortedKeys(counts) {
		if counts[tok] > bestCount {
			best, bestCount = tok, counts[tok]
		}
	}
	if best == "" {
		return "coupled cluster"
	}
	return best + " cluster"
}

// directoryUnits promotes a directory to a unit when its files are well
// covered by the analysis, named alike, and internally connected.
func (a *Analyzer) directoryUnits(ac *engine.Context, neighbors map[string]map[string]bool, register func(*model.SemanticUnit)) {
	u := ac.Understanding()
	if u.FileSystem == nil {
		return
	}
	gate := ac.Thresholds().CoherenceGate

	roots := map[string]*model.CodeNode{}
	for _, n := range u.CodeNodes {
		if n.Type == model.NodeFile {
			roots[n.Path] = n
		}
	}

	dirs := map[string]*model.DirectoryNode{}
	u.FileSystem.Walk(func(dir *model.DirectoryNode, _ *model.FileNode) {
		dirs[dir.Path] = dir
	})
	for _, dirPath := range sortedKeys(dirs) {
		dir := dirs[dirPath]
		if len(dir.Files) < minUnitSize {
			continue
		}
		var members []string
		var stems []string
		for _, f := range dir.Files {
			if root := roots[f.Path]; root != nil {
				members = append(members, root.ID)
				stems = append(stems, strings.TrimSuffix(f.Name, path.Ext(f.Name)))
			}
		}
		if len(members) < minUnitSize {
			continue
		}
		coverage := float64(len(members)) / float64(len(dir.Files))
		composite := (coverage + a.nameSimilarity(stems) + density(members, neighbors)) / 3
		if composite < gate {
			continue
		}
		base := path.Base(dir.Path)
		unitType := unitTypeFor("", base)
		if unitType == model.UnitModule {
			unitType = model.UnitDirectory
		}
		sort.Strings(members)
		register(&model.SemanticUnit{
			ID:          "unit:dir:" + dir.Path,
			Type:        unitType,
			Name:        base,
			CodeNodeIDs: members,
			Confidence:  composite,
			Properties: model.SemanticProperties{
				Cohesion:         composite,
				DominantNodeType: model.NodeFile,
			},
		})
	}
}

// unitTypeFor maps a dominant node type and a name hint to a unit type.
// Name hints win: a "userService" group is a service no matter what node
// types it holds.
func unitTypeFor(dominant model.NodeType, name string) model.UnitType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "service"):
		return model.UnitService
	case strings.Contains(lower, "store"), strings.Contains(lower, "repo"), strings.Contains(lower, "cache"):
		return model.UnitDataStore
	case strings.Contains(lower, "schema"), strings.Contains(lower, "model"), strings.Contains(lower, "entity"):
		return model.UnitSchema
	}
	switch dominant {
	case model.NodeClass:
		return model.UnitClass
	case model.NodeInterface, model.NodeTypeDef, model.NodeEnum:
		return model.UnitSchema
	case model.NodeFunction, model.NodeMethod, model.NodeVariable, model.NodeProperty:
		return model.UnitComponent
	default:
		return model.UnitModule
	}
}

// dominantNodeType is the most common type among the named nodes, breaking
// ties toward the lexicographically smaller type.
func dominantNodeType(ids []string, nodes map[string]*model.CodeNode) model.NodeType {
	counts := map[model.NodeType]int{}
	for _, id := range ids {
		if n := nodes[id]; n != nil {
			counts[n.Type]++
		}
	}
	types := make([]model.NodeType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	var best model.NodeType
	bestCount := 0
	for _, t := range types {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
