package cluster

import (
	"math"
	"sort"

	"fathom/internal/model"
)

// MetricWeights selects and weighs the similarity metrics blended into the
// matrix. A zero weight disables its metric; the blend normalizes over the
// weights actually in play.
type MetricWeights struct {
	Naming       float64
	Structural   float64
	Relationship float64
	Semantic     float64
	Size         float64
}

// DefaultWeights favors naming and structural evidence, which every node
// carries, over relationship and semantic evidence, which only some do.
func DefaultWeights() MetricWeights {
	return MetricWeights{
		Naming:       0.3,
		Structural:   0.25,
		Relationship: 0.2,
		Semantic:     0.15,
		Size:         0.1,
	}
}

func (w MetricWeights) total() float64 {
	return w.Naming + w.Structural + w.Relationship + w.Semantic + w.Size
}

// Matrix is a symmetric pairwise similarity matrix over an ordered set of
// same-type code nodes. Indices are positions in the id-sorted node list.
type Matrix struct {
	ids  []string
	sims [][]float64
}

// Len returns the number of nodes in the matrix.
func (m *Matrix) Len() int { return len(m.ids) }

// NodeID returns the id of the node at index i.
func (m *Matrix) NodeID(i int) string { return m.ids[i] }

// Sim returns the similarity of nodes i and j, 1 on the diagonal.
func (m *Matrix) Sim(i, j int) float64 {
	if i == j {
		return 1
	}
	return m.sims[i][j]
}

// BuildMatrix computes the pairwise similarity matrix for the given nodes,
// which should share one node type. Relationship degrees and semantic
// membership are read from the understanding.
func BuildMatrix(u *model.UnifiedUnderstanding, nodes []*model.CodeNode, w MetricWeights) *Matrix {
	sorted := append([]*model.CodeNode(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	profiles := buildProfiles(u, sorted)
	n := len(profiles)
	m := &Matrix{ids: make([]string, n), sims: make([][]float64, n)}
	for i, p := range profiles {
		m.ids[i] = p.id
		m.sims[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := similarity(profiles[i], profiles[j], w)
			m.sims[i][j] = s
			m.sims[j][i] = s
		}
	}
	return m
}

// profile caches everything the metrics need about one node.
type profile struct {
	id         string
	tokens     map[string]bool
	first      string
	last       string
	convention string

	meta       map[string]bool
	childCount int
	childDist  map[model.NodeType]float64
	span       int
	size       int

	relTypes map[model.RelationshipType]bool
	inDeg    int
	outDeg   int

	units    map[string]bool
	concepts map[string]bool
}

func buildProfiles(u *model.UnifiedUnderstanding, nodes []*model.CodeNode) []*profile {
	type relInfo struct {
		types  map[model.RelationshipType]bool
		in     int
		out    int
	}
	rels := map[string]*relInfo{}
	relFor := func(id string) *relInfo {
		ri := rels[id]
		if ri == nil {
			ri = &relInfo{types: map[model.RelationshipType]bool{}}
			rels[id] = ri
		}
		return ri
	}
	for _, r := range u.Relationships {
		src, dst := relFor(r.SourceID), relFor(r.TargetID)
		src.types[r.Type] = true
		dst.types[r.Type] = true
		src.out++
		dst.in++
	}

	units := map[string]map[string]bool{}
	for _, su := range u.SemanticUnits {
		for _, id := range su.CodeNodeIDs {
			if units[id] == nil {
				units[id] = map[string]bool{}
			}
			units[id][su.ID] = true
		}
	}
	concepts := map[string]map[string]bool{}
	for _, c := range u.Concepts {
		for _, id := range c.CodeElements {
			if concepts[id] == nil {
				concepts[id] = map[string]bool{}
			}
			concepts[id][c.ID] = true
		}
	}

	out := make([]*profile, 0, len(nodes))
	for _, n := range nodes {
		toks := nameTokens(n.Name)
		p := &profile{
			id:         n.ID,
			tokens:     toSet(toks),
			convention: conventionOf(n.Name),
			meta:       metaSet(n.Metadata),
			childCount: len(n.Children),
			childDist:  childDistribution(n),
			span:       n.Span(),
			size:       contentSize(n),
			units:      units[n.ID],
			concepts:   concepts[n.ID],
		}
		if len(toks) > 0 {
			p.first, p.last = toks[0], toks[len(toks)-1]
		}
		if ri := rels[n.ID]; ri != nil {
			p.relTypes = ri.types
			p.inDeg, p.outDeg = ri.in, ri.out
		}
		out = append(out, p)
	}
	return out
}

func similarity(a, b *profile, w MetricWeights) float64 {
	total := w.total()
	if total == 0 {
		return 0
	}
	s := 0.0
	if w.Naming > 0 {
		s += w.Naming * namingSimilarity(a, b)
	}
	if w.Structural > 0 {
		s += w.Structural * structuralSimilarity(a, b)
	}
	if w.Relationship > 0 {
		s += w.Relationship * relationshipSimilarity(a, b)
	}
	if w.Semantic > 0 {
		s += w.Semantic * semanticSimilarity(a, b)
	}
	if w.Size > 0 {
		s += w.Size * sizeSimilarity(a, b)
	}
	return s / total
}

// namingSimilarity blends a shared-affix check, casing convention equality
// and name-token overlap.
func namingSimilarity(a, b *profile) float64 {
	affix := 0.0
	if (a.first != "" && a.first == b.first) || (a.last != "" && a.last == b.last) {
		affix = 1
	}
	convention := 0.0
	if a.convention != "" && a.convention == b.convention {
		convention = 1
	}
	return (affix + convention + jaccard(a.tokens, b.tokens)) / 3
}

// structuralSimilarity blends metadata overlap, child composition and line
// span. Two nodes with no metadata and no children agree completely on
// those components.
func structuralSimilarity(a, b *profile) float64 {
	meta := 1.0
	if len(a.meta) > 0 || len(b.meta) > 0 {
		meta = jaccard(a.meta, b.meta)
	}
	children := (ratio(a.childCount, b.childCount) + distOverlap(a.childDist, b.childDist)) / 2
	return (meta + children + ratio(a.span, b.span)) / 3
}

// relationshipSimilarity compares how two nodes sit in the edge graph. A
// node outside the graph carries no evidence, so any pair involving one
// scores zero.
func relationshipSimilarity(a, b *profile) float64 {
	aDeg, bDeg := a.inDeg+a.outDeg, b.inDeg+b.outDeg
	if aDeg == 0 || bDeg == 0 {
		return 0
	}
	ra := float64(a.outDeg) / float64(aDeg)
	rb := float64(b.outDeg) / float64(bDeg)
	return (jaccard(a.relTypes, b.relTypes) + 1 - math.Abs(ra-rb)) / 2
}

// semanticSimilarity is the overlap of semantic unit and concept membership.
func semanticSimilarity(a, b *profile) float64 {
	if len(a.units)+len(a.concepts) == 0 || len(b.units)+len(b.concepts) == 0 {
		return 0
	}
	return (jaccard(a.units, b.units) + jaccard(a.concepts, b.concepts)) / 2
}

func sizeSimilarity(a, b *profile) float64 {
	return ratio(a.size, b.size)
}

// contentSize is the declaration text length, falling back to the line span
// when no content was captured.
func contentSize(n *model.CodeNode) int {
	if len(n.Content) > 0 {
		return len(n.Content)
	}
	return n.Span()
}

func childDistribution(n *model.CodeNode) map[model.NodeType]float64 {
	if len(n.Children) == 0 {
		return nil
	}
	dist := map[model.NodeType]float64{}
	share := 1 / float64(len(n.Children))
	for _, c := range n.Children {
		dist[c.Type] += share
	}
	return dist
}

// distOverlap is the histogram intersection of two type distributions.
func distOverlap(a, b map[model.NodeType]float64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	overlap := 0.0
	for t, sa := range a {
		overlap += math.Min(sa, b[t])
	}
	return overlap
}

func metaSet(meta map[string]string) map[string]bool {
	if len(meta) == 0 {
		return nil
	}
	set := make(map[string]bool, len(meta))
	for k, v := range meta {
		set[k+"\x00"+v] = true
	}
	return set
}

// ratio is the smaller count over the larger; both-zero counts agree.
func ratio(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 1
	}
	return float64(a) / float64(b)
}

func toSet[K comparable](keys []K) map[K]bool {
	set := make(map[K]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// jaccard is intersection over union; empty sets share nothing.
func jaccard[K comparable](a, b map[K]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
