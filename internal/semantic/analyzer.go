// Package semantic mines concepts from names, comments and structure, links
// them through shared evidence, and groups code elements into cohesive
// semantic units. Everything is evidence-scored: a concept exists because
// enough elements mention it, a link exists because two concepts share
// elements, words, edges or data flow, and a unit exists because a coherence
// gate says its members belong together.
//
// Comment evidence is collected per file during content analysis and stored
// in the file root's metadata; concepts and units are rebuilt globally from
// all evidence, so incremental runs and snapshot loads behave like full
// runs. The whole analyzer honors the semanticAnalysis option and clears its
// output when disabled.
package semantic

import (
	"log/slog"
	"sort"
	"sync"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	// minTokenLen drops fragments too short to mean anything, unless a
	// protected abbreviation.
	minTokenLen = 3
	// minConceptFreq is how often a term must occur before it can be a
	// concept.
	minConceptFreq = 2
	// minTypeVariety is how many distinct node types an identifier token
	// needs; tokens confined to one type are local vocabulary.
	minTypeVariety = 2

	maxCommentTermsPerFile = 40
	maxCommentLineLen      = 240
	maxNGram               = 3

	maxConcepts     = 200
	maxConceptLinks = 24

	minUnitSize     = 2
	minCouplingSize = 3
)

// metaCommentTerms is the file root metadata key carrying comment evidence.
const metaCommentTerms = "commentTerms"

// Analyzer extracts concepts and forms semantic units.
type Analyzer struct {
	logger *slog.Logger
	hasher *incremental.Hasher
	tk     *tokenizer

	mu      sync.Mutex
	pending map[string]map[string]int // fresh comment terms per path, this run
}

// NewAnalyzer creates the semantic analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger:  logger,
		hasher:  incremental.NewHasher(),
		pending: map[string]map[string]int{},
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "semantic" }
func (a *Analyzer) Priority() int          { return 60 }
func (a *Analyzer) Dependencies() []string { return []string{"structure", "patterns"} }

func (a *Analyzer) Initialize(ac *engine.Context) error {
	a.tk = newTokenizer(ac.Vocab())
	return nil
}

// AnalyzeFile mines comment terms for one file. Terms are buffered and
// written to the file's root node during relationship mapping, where access
// to the node map is single threaded.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	if !ac.Options().SemanticAnalysis {
		return nil
	}
	terms := extractCommentTerms(content, a.tk)
	a.mu.Lock()
	// Empty results are kept so re-analysis clears stale evidence.
	a.pending[file.Path] = terms
	a.mu.Unlock()
	return nil
}

// ProcessRelationships flushes this run's comment evidence into the file
// root nodes. Metadata is excluded from node hashing, so evidence updates
// never ripple into structural diffs.
func (a *Analyzer) ProcessRelationships(ac *engine.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = map[string]map[string]int{}
	a.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	roots := make(map[string]*model.CodeNode)
	for _, n := range ac.Understanding().CodeNodes {
		if n.Type == model.NodeFile {
			roots[n.Path] = n
		}
	}
	for p, terms := range pending {
		root := roots[p]
		if root == nil {
			continue
		}
		if root.Metadata == nil {
			root.Metadata = map[string]string{}
		}
		if encoded := encodeTerms(terms); encoded != "" {
			root.Metadata[metaCommentTerms] = encoded
		} else {
			delete(root.Metadata, metaCommentTerms)
		}
	}
	return nil
}

// DiscoverPatterns rebuilds the concept list from all name, identifier,
// comment and data-structure evidence in the understanding.
func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error {
	ac.ResetConcepts()
	if !ac.Options().SemanticAnalysis {
		return nil
	}
	count := a.buildConcepts(ac)
	a.logger.Debug("concepts extracted", "count", count)
	return nil
}

// IntegrateAnalysis links the concepts and forms semantic units. It runs
// after the data flow graph is published, so flow links see the full graph.
func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error {
	ac.ResetSemanticUnits()
	if !ac.Options().SemanticAnalysis {
		return nil
	}
	links := a.linkConcepts(ac)
	units := a.formUnits(ac)
	a.logger.Debug("semantic analysis integrated", "links", links, "units", units)
	return nil
}

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.mu.Lock()
	a.pending = map[string]map[string]int{}
	a.mu.Unlock()
	return nil
}

// sortedNodes returns every registered node in id order.
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
