// Package patterns registers the regularities a codebase exhibits: dominant
// naming conventions and affixes per node type, recurring container
// composition, type-homogeneous directories and architectural layouts
// evidenced by directory vocabulary. Every pattern is a census result: it
// registers only when its coverage of the sampled population clears the
// configured dominance threshold, and its confidence is that coverage.
//
// The whole pattern list is rebuilt from the current understanding on every
// run, so incremental runs and snapshot loads converge on the same patterns
// a full run would find.
package patterns

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	// minCensusPopulation is how many samples a census needs before a
	// dominant share means anything.
	minCensusPopulation = 3
	// minAffixLen keeps one and two letter tokens out of the affix census.
	minAffixLen = 3
	// maxInstancesPerPattern caps stored instances. Frequency keeps the
	// uncapped count.
	maxInstancesPerPattern = 200
)

// Analyzer derives code patterns from the node population and the file tree.
type Analyzer struct {
	logger *slog.Logger
	hasher *incremental.Hasher

	stopwords map[string]bool // set at Initialize, read-only afterwards
}

// NewAnalyzer creates the patterns analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
		hasher: incremental.NewHasher(),
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "patterns" }
func (a *Analyzer) Priority() int          { return 50 }
func (a *Analyzer) Dependencies() []string { return []string{"structure"} }

func (a *Analyzer) Initialize(ac *engine.Context) error {
	a.stopwords = ac.Vocab().StopwordSet()
	return nil
}

// AnalyzeFile is a no-op; every census reads the node population structure
// already registered.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	return nil
}

func (a *Analyzer) ProcessRelationships(ac *engine.Context) error { return nil }

// DiscoverPatterns rebuilds the registered pattern list from the current
// node population, file tree and relationship graph.
func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error {
	ac.ResetPatterns()
	u := ac.Understanding()
	dominance := ac.Thresholds().NamingDominance

	nodes := sortedNodes(u)
	roots := make(map[string]*model.CodeNode)
	for _, n := range nodes {
		if n.Type == model.NodeFile {
			roots[n.Path] = n
		}
	}

	naming := a.namingPatterns(ac, nodes, dominance)
	affix := a.affixPatterns(ac, nodes, dominance)
	structural := a.structuralPatterns(ac, nodes, dominance)
	organization := a.organizationPatterns(ac, u, roots, dominance)
	architecture := a.architecturePatterns(ac, u, roots)

	a.logger.Debug("patterns registered",
		"naming", naming, "affix", affix, "structural", structural,
		"organization", organization, "architecture", architecture)
	return nil
}

func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error { return nil }

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.stopwords = nil
	return nil
}

// namingPatterns registers at most one casing convention per node type, when
// the dominant convention covers enough of that type's population. Names no
// convention matches still count toward the population.
func (a *Analyzer) namingPatterns(ac *engine.Context, nodes []*model.CodeNode, dominance float64) int {
	population := make(map[model.NodeType]int)
	matches := make(map[model.NodeType]map[string][]*model.CodeNode)
	total := 0

	for _, n := range nodes {
		name := censusName(n)
		if name == "" {
			continue
		}
		population[n.Type]++
		total++
		conv := classifyCasing(name)
		if conv == "" {
			continue
		}
		if matches[n.Type] == nil {
			matches[n.Type] = make(map[string][]*model.CodeNode)
		}
		matches[n.Type][conv] = append(matches[n.Type][conv], n)
	}

	registered := 0
	for _, typ := range sortedTypes(population) {
		if population[typ] < minCensusPopulation {
			continue
		}
		conv, members := dominantGroup(matches[typ])
		if conv == "" {
			continue
		}
		coverage := float64(len(members)) / float64(population[typ])
		if coverage < dominance {
			continue
		}
		p := &model.CodePattern{
			ID:         "pat:naming:" + string(typ) + ":" + conv,
			Type:       model.PatternNaming,
			Name:       fmt.Sprintf("%s %s names", conv, typ),
			Signature:  model.PatternSignature{NodeType: typ, Convention: conv},
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

// affixPatterns registers the dominant meaningful first or last name token
// per node type. Only multi-token names take part; a single-token name has
// no affix to speak of.
func (a *Analyzer) affixPatterns(ac *engine.Context, nodes []*model.CodeNode, dominance float64) int {
	eligible := make(map[model.NodeType]int)
	prefixes := make(map[model.NodeType]map[string][]*model.CodeNode)
	suffixes := make(map[model.NodeType]map[string][]*model.CodeNode)
	total := 0

	for _, n := range nodes {
		toks := nameTokens(censusName(n))
		if len(toks) < 2 {
			continue
		}
		eligible[n.Type]++
		total++
		if tok := toks[0]; a.meaningful(tok) {
			addMember(prefixes, n.Type, tok, n)
		}
		if tok := toks[len(toks)-1]; a.meaningful(tok) {
			addMember(suffixes, n.Type, tok, n)
		}
	}

	ends := []struct {
		kind   model.AffixKind
		census map[model.NodeType]map[string][]*model.CodeNode
	}{
		{model.AffixPrefix, prefixes},
		{model.AffixSuffix, suffixes},
	}

	registered := 0
	for _, typ := range sortedTypes(eligible) {
		if eligible[typ] < minCensusPopulation {
			continue
		}
		for _, end := range ends {
			affix, members := dominantGroup(end.census[typ])
			if affix == "" {
				continue
			}
			coverage := float64(len(members)) / float64(eligible[typ])
			if coverage < dominance {
				continue
			}
			p := &model.CodePattern{
				ID:         "pat:affix:" + string(typ) + ":" + string(end.kind) + ":" + affix,
				Type:       model.PatternNaming,
				Name:       fmt.Sprintf("%s names with %s %q", typ, end.kind, affix),
				Signature:  model.PatternSignature{NodeType: typ, Affix: affix, AffixKind: end.kind},
				Instances:  instancesOf(members),
				Confidence: coverage,
				Frequency:  len(members),
				Importance: importance(len(members), total),
			}
			a.hasher.HashPattern(p)
			ac.AddPattern(p)
			registered++
		}
	}
	return registered
}

// meaningful filters affix candidates: long enough to carry meaning and not
// generic programming vocabulary.
func (a *Analyzer) meaningful(tok string) bool {
	return len(tok) >= minAffixLen && !a.stopwords[tok]
}

// censusName is the name a node contributes to the censuses. File names are
// reduced to their stem so the extension never skews the casing.
func censusName(n *model.CodeNode) string {
	if n.Type == model.NodeFile {
		return strings.TrimSuffix(n.Name, path.Ext(n.Name))
	}
	return n.Name
}

// sortedNodes returns every registered node in id order. Censuses iterate
// this slice so group membership order is deterministic.
func sortedNodes(u *model.UnifiedUnderstanding) []*model.CodeNode {
	ids := make([]string, 0, len(u.CodeNodes))
	for id := range u.CodeNodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.CodeNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, u.CodeNodes[id])
	}
	return out
}

func sortedTypes(m map[model.NodeType]int) []model.NodeType {
	types := make([]model.NodeType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func addMember(census map[model.NodeType]map[string][]*model.CodeNode, typ model.NodeType, key string, n *model.CodeNode) {
	if census[typ] == nil {
		census[typ] = make(map[string][]*model.CodeNode)
	}
	census[typ][key] = append(census[typ][key], n)
}

// dominantGroup returns the most populous group; ties go to the
// lexicographically smaller key.
func dominantGroup(groups map[string][]*model.CodeNode) (string, []*model.CodeNode) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	var members []*model.CodeNode
	for _, k := range keys {
		if len(groups[k]) > len(members) {
			best, members = k, groups[k]
		}
	}
	return best, members
}

// instancesOf converts matching nodes into stored instances, id-sorted and
// capped.
func instancesOf(members []*model.CodeNode) []model.PatternInstance {
	sorted := append([]*model.CodeNode(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if len(sorted) > maxInstancesPerPattern {
		sorted = sorted[:maxInstancesPerPattern]
	}
	out := make([]model.PatternInstance, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, model.PatternInstance{NodeID: n.ID, Path: n.Path, MatchScore: 1})
	}
	return out
}

// importance relates a pattern's frequency to the population it was drawn
// from.
func importance(frequency, population int) float64 {
	if population == 0 {
		return 0
	}
	return min(1, float64(frequency)/float64(population))
}
