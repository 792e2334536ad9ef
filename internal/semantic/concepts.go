package semantic

import (
	"path"
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/model"
)

// conceptSeed accumulates evidence for one candidate concept before
// qualification.
type conceptSeed struct {
	name     string
	elements map[string]bool
	types    map[model.NodeType]bool
	sources  map[string]bool
	count    int
	desc     string
}

// buildConcepts runs the evidence census over every registered node and the
// stored comment terms, qualifies the candidates, and registers the
// survivors. Returns the number of concepts registered.
func (a *Analyzer) buildConcepts(ac *engine.Context) int {
	u := ac.Understanding()
	seeds := map[string]*conceptSeed{}

	add := func(name, elementID, source string, types ...model.NodeType) *conceptSeed {
		s := seeds[name]
		if s == nil {
			s = &conceptSeed{
				name:     name,
				elements: map[string]bool{},
				types:    map[model.NodeType]bool{},
				sources:  map[string]bool{},
			}
			seeds[name] = s
		}
		s.count++
		s.elements[elementID] = true
		s.sources[source] = true
		for _, t := range types {
			s.types[t] = true
		}
		return s
	}

	nodes := sortedNodes(u)
	for _, n := range nodes {
		name := n.Name
		if n.Type == model.NodeFile {
			name = strings.TrimSuffix(name, path.Ext(name))
		}
		toks := a.tk.significant(name)
		if len(toks) == 0 {
			continue
		}
		switch n.Type {
		case model.NodeFile, model.NodeModule, model.NodeNamespace:
			// Container names are deliberate vocabulary; each token
			// counts on its own.
			for _, tok := range toks {
				add(tok, n.ID, "name")
			}
		default:
			for _, tok := range toks {
				add(tok, n.ID, "identifier", n.Type)
			}
		}
		switch n.Type {
		case model.NodeClass, model.NodeInterface, model.NodeEnum, model.NodeTypeDef:
			// A declared data structure is a concept in its own right,
			// under its full name.
			s := add(strings.Join(toks, " "), n.ID, "structure", n.Type)
			if s.desc == "" {
				s.desc = "data structure " + n.Name
			}
		}
	}

	// Comment evidence, stored per file root during content analysis.
	for _, n := range nodes {
		if n.Type != model.NodeFile {
			continue
		}
		for term, cnt := range decodeTerms(n.Metadata[metaCommentTerms]) {
			s := add(term, n.ID, "comment")
			s.count += cnt - 1 // add already counted one occurrence
		}
	}

	qualified := make([]*conceptSeed, 0, len(seeds))
	for _, s := range seeds {
		if a.qualifies(s) {
			qualified = append(qualified, s)
		}
	}
	if len(qualified) > maxConcepts {
		sort.Slice(qualified, func(i, j int) bool {
			if qualified[i].count != qualified[j].count {
				return qualified[i].count > qualified[j].count
			}
			return qualified[i].name < qualified[j].name
		})
		qualified = qualified[:maxConcepts]
	}
	sort.Slice(qualified, func(i, j int) bool { return qualified[i].name < qualified[j].name })

	total := len(u.CodeNodes)
	for _, s := range qualified {
		elements := make([]string, 0, len(s.elements))
		for id := range s.elements {
			elements = append(elements, id)
		}
		sort.Strings(elements)

		c := &model.Concept{
			ID:           "concept:" + strings.ReplaceAll(s.name, " ", "-"),
			Name:         s.name,
			Description:  s.desc,
			CodeElements: elements,
			Confidence:   conceptConfidence(len(s.sources), s.count),
			Importance:   conceptImportance(len(s.elements), len(s.types), total),
		}
		c.ContentHash = a.hasher.HashConcept(c)
		ac.AddConcept(c)
	}
	return len(qualified)
}

// qualifies decides whether a seed carries enough evidence to be a concept.
// Declared structures always qualify. Everything else needs repetition, and
// identifier-only vocabulary additionally needs to span node types so that
// one class's private jargon does not become a concept.
func (a *Analyzer) qualifies(s *conceptSeed) bool {
	if s.sources["structure"] {
		return true
	}
	if s.count < minConceptFreq {
		return false
	}
	if s.sources["name"] || s.sources["comment"] {
		return true
	}
	return len(s.types) >= minTypeVariety
}

// conceptConfidence grows with evidence variety and repetition, capped well
// below certainty because concepts are inferred, never declared.
func conceptConfidence(sources, count int) float64 {
	return min(0.9, 0.4+0.1*float64(sources)+0.02*float64(min(count, 10)))
}

// conceptImportance scales with reach: how many elements mention the concept
// and how many node types it spans, relative to the whole codebase.
func conceptImportance(elements, types, total int) float64 {
	return min(1, float64(elements)*float64(max(1, types))/float64(max(1, total)))
}
