package semantic

import (
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/model"
)

// linkConcepts relates the registered concepts along four signals: shared
// code elements, similar naming, structural edges between their elements,
// and data flow between identifiers they describe. The first three are
// symmetric; flow links are directional. Returns the number of links
// attached. Links carry concept IDs only; a concept dropped on a later run
// simply leaves dangling references behind, which readers resolve by lookup.
func (a *Analyzer) linkConcepts(ac *engine.Context) int {
	u := ac.Understanding()
	concepts := u.Concepts
	if len(concepts) < 2 {
		return 0
	}
	thr := ac.Thresholds()

	elemSets := make([]map[string]bool, len(concepts))
	wordSets := make([]map[string]bool, len(concepts))
	for i, c := range concepts {
		elemSets[i] = toSet(c.CodeElements)
		words := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(c.Name + " " + c.Description)) {
			words[w] = true
		}
		wordSets[i] = words
	}
	neighbors := nodeNeighbors(u)

	linked := 0
	link := func(i, j int, t model.ConceptLinkType, w float64) {
		concepts[i].RelatedConcepts = append(concepts[i].RelatedConcepts, model.ConceptLink{
			ConceptID: concepts[j].ID,
			Type:      t,
			Weight:    w,
		})
		linked++
	}

	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			if jac := jaccard(elemSets[i], elemSets[j]); jac >= thr.ConceptLinkMinJaccard {
				link(i, j, model.LinkSharedElements, jac)
				link(j, i, model.LinkSharedElements, jac)
			}
			if jac := jaccard(wordSets[i], wordSets[j]); jac >= thr.NameLinkMinJaccard {
				link(i, j, model.LinkNameSimilarity, jac)
				link(j, i, model.LinkNameSimilarity, jac)
			}
			if edges := crossEdges(elemSets[i], elemSets[j], neighbors); edges > 0 {
				w := min(1, float64(edges)/float64(len(elemSets[i])*len(elemSets[j])))
				link(i, j, model.LinkStructural, w)
				link(j, i, model.LinkStructural, w)
			}
		}
	}

	a.flowLinks(u, concepts, link)

	for _, c := range concepts {
		rc := c.RelatedConcepts
		sort.Slice(rc, func(i, j int) bool {
			if rc[i].Weight != rc[j].Weight {
				return rc[i].Weight > rc[j].Weight
			}
			if rc[i].ConceptID != rc[j].ConceptID {
				return rc[i].ConceptID < rc[j].ConceptID
			}
			return rc[i].Type < rc[j].Type
		})
		if len(rc) > maxConceptLinks {
			c.RelatedConcepts = rc[:maxConceptLinks]
		}
	}
	return linked
}

// flowLinks turns data-flow edges into directional concept links: when an
// identifier evidencing concept A flows into one evidencing concept B, A is
// linked to B. Repeated flows between the same pair raise the weight.
func (a *Analyzer) flowLinks(u *model.UnifiedUnderstanding, concepts []*model.Concept, link func(i, j int, t model.ConceptLinkType, w float64)) {
	if u.DataFlow == nil || len(u.DataFlow.Flows) == 0 {
		return
	}
	wordIndex := map[string][]int{}
	for i, c := range concepts {
		for _, w := range strings.Fields(c.Name) {
			wordIndex[w] = append(wordIndex[w], i)
		}
	}
	conceptsFor := func(name string) []int {
		var out []int
		seen := map[int]bool{}
		for _, tok := range a.tk.significant(name) {
			for _, idx := range wordIndex[tok] {
				if !seen[idx] {
					seen[idx] = true
					out = append(out, idx)
				}
			}
		}
		return out
	}

	support := map[[2]int]int{}
	for _, f := range u.DataFlow.Flows {
		from := u.DataFlow.Nodes[f.FromID]
		to := u.DataFlow.Nodes[f.ToID]
		if from == nil || to == nil {
			continue
		}
		for _, fi := range conceptsFor(from.Name) {
			for _, ti := range conceptsFor(to.Name) {
				if fi != ti {
					support[[2]int{fi, ti}]++
				}
			}
		}
	}

	pairs := make([][2]int, 0, len(support))
	for p := range support {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, p := range pairs {
		link(p[0], p[1], model.LinkFlowsTo, min(0.9, 0.3*float64(support[p])))
	}
}

// nodeNeighbors builds an undirected adjacency set over code nodes from the
// relationship list. Containment is excluded: parent-child edges describe
// layout, not interaction.
func nodeNeighbors(u *model.UnifiedUnderstanding) map[string]map[string]bool {
	adj := map[string]map[string]bool{}
	addEdge := func(a, b string) {
		if adj[a] == nil {
			adj[a] = map[string]bool{}
		}
		adj[a][b] = true
	}
	for _, r := range u.Relationships {
		if r.Type == model.RelContains {
			continue
		}
		addEdge(r.SourceID, r.TargetID)
		addEdge(r.TargetID, r.SourceID)
	}
	return adj
}

// crossEdges counts adjacency pairs with one endpoint in each set.
func crossEdges(a, b map[string]bool, neighbors map[string]map[string]bool) int {
	edges := 0
	for id := range a {
		for nb := range neighbors[id] {
			if b[nb] {
				edges++
			}
		}
	}
	return edges
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// jaccard is intersection over union of two sets; 0 when either is empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
