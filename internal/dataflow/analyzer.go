// Package dataflow traces how data moves within files. Identifiers acting
// as sources, sinks, transformers and stores are recognized from their name
// tokens and usage shape; flows connect them by line order and by shared
// identifiers, and integration walks bounded source-to-sink paths over the
// result.
//
// Like structure and imports, the analyzer keeps its raw evidence in file
// root node metadata and rebuilds the whole graph from it during
// relationship mapping, so incremental runs and snapshot loads behave the
// same as full runs.
package dataflow

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	maxObservationsPerFile = 40
	maxLineLen             = 240
	maxCtxIdents           = 8
	// condLookback is how many lines above an observation still count as
	// enclosing control-flow context.
	condLookback = 3
	// maxFlowSpan is the largest line distance a flow may bridge.
	maxFlowSpan     = 40
	maxFlowsPerFile = 60
	maxPathDepth    = 8
	maxPathCount    = 256
)

// metaDataLines is the file root metadata key carrying role observations.
const metaDataLines = "dataLines"

// Analyzer discovers data movement from identifier role evidence.
type Analyzer struct {
	logger *slog.Logger
	hasher *incremental.Hasher

	mu      sync.Mutex
	pending map[string][]observation

	nodes map[string]*model.DataNode
	flows []*model.DataFlow
}

// NewAnalyzer creates the data-flow analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger:  logger,
		hasher:  incremental.NewHasher(),
		pending: map[string][]observation{},
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "dataflow" }
func (a *Analyzer) Priority() int          { return 40 }
func (a *Analyzer) Dependencies() []string { return []string{"structure"} }

func (a *Analyzer) Initialize(ac *engine.Context) error { return nil }

// AnalyzeFile collects role observations. They are buffered and written to
// the file's root node during relationship mapping, where access to the node
// map is single threaded.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	obs := observeFile(content)
	a.mu.Lock()
	// Empty results are kept so re-analysis clears stale evidence.
	a.pending[file.Path] = obs
	a.mu.Unlock()
	return nil
}

// ProcessRelationships rebuilds all data nodes and flows from the
// observations of every file. Flows never cross files; cross-file movement
// is the imports analyzer's territory.
func (a *Analyzer) ProcessRelationships(ac *engine.Context) error {
	u := ac.Understanding()

	roots := make(map[string]*model.CodeNode)
	for _, n := range u.CodeNodes {
		if n.Type == model.NodeFile {
			roots[n.Path] = n
		}
	}
	a.flushPending(roots)

	corpus := make(map[string][]observation)
	for p, root := range roots {
		if obs := decodeObservations(root.Metadata[metaDataLines]); len(obs) > 0 {
			corpus[p] = obs
		}
	}

	paths := make([]string, 0, len(corpus))
	for p := range corpus {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	opts := ac.Options()
	a.nodes = make(map[string]*model.DataNode)
	a.flows = nil
	flowIDs := map[string]bool{}
	for _, p := range paths {
		a.buildFileFlows(p, corpus[p], opts, flowIDs)
	}

	a.logger.Debug("data flows mapped",
		"files", len(paths), "nodes", len(a.nodes), "flows", len(a.flows))
	return nil
}

// flushPending writes this run's observations into the file root nodes.
// Metadata is excluded from node hashing, so evidence updates never ripple
// into structural diffs.
func (a *Analyzer) flushPending(roots map[string]*model.CodeNode) {
	a.mu.Lock()
	pending := a.pending
	a.pending = map[string][]observation{}
	a.mu.Unlock()

	for p, obs := range pending {
		root := roots[p]
		if root == nil {
			continue
		}
		if root.Metadata == nil {
			root.Metadata = map[string]string{}
		}
		if encoded := encodeObservations(obs); encoded != "" {
			root.Metadata[metaDataLines] = encoded
		} else {
			delete(root.Metadata, metaDataLines)
		}
	}
}

// flowNode is one deduplicated endpoint within a file: the first observation
// of a name in a role, with merged flags and context.
type flowNode struct {
	node        *model.DataNode
	async       bool
	conditional bool
	idents      map[string]bool
}

func roleRank(r model.DataRole) int {
	switch r {
	case model.RoleSource:
		return 0
	case model.RoleTransformer:
		return 1
	default:
		return 2
	}
}

// buildFileFlows turns one file's observations into data nodes and flows.
func (a *Analyzer) buildFileFlows(path string, obs []observation, opts engine.Options, flowIDs map[string]bool) {
	ordered := make([]*flowNode, 0, len(obs))
	byKey := map[string]*flowNode{}
	for _, o := range obs {
		key := strings.ToLower(o.Name) + "\x00" + string(o.Role)
		fn := byKey[key]
		if fn == nil {
			fn = &flowNode{
				node: &model.DataNode{
					ID: fmt.Sprintf("data:%s#%s:%s@%d",
						path, strings.ToLower(string(o.Role)), o.Name, o.Line),
					Name:       o.Name,
					Path:       path,
					Line:       o.Line,
					Role:       o.Role,
					Confidence: 0.55,
				},
				idents: map[string]bool{strings.ToLower(o.Name): true},
			}
			byKey[key] = fn
			ordered = append(ordered, fn)
		}
		fn.node.Confidence = min(0.9, fn.node.Confidence+0.05)
		fn.async = fn.async || o.Async
		fn.conditional = fn.conditional || o.Conditional
		for _, c := range o.Ctx {
			fn.idents[c] = true
		}
	}
	for _, fn := range ordered {
		a.nodes[fn.node.ID] = fn.node
	}

	// Within a line, sources sort before transformers before sinks, so a
	// one-line read-and-send still chains in data order.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].node.Line != ordered[j].node.Line {
			return ordered[i].node.Line < ordered[j].node.Line
		}
		return roleRank(ordered[i].node.Role) < roleRank(ordered[j].node.Role)
	})

	count := 0

	// Shared-identifier flows first; they carry more confidence and win the
	// id on overlap with a chain flow.
	for i := 0; i < len(ordered) && count < maxFlowsPerFile; i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].node.Line <= ordered[i].node.Line {
				continue
			}
			if ordered[j].node.Line-ordered[i].node.Line > maxFlowSpan {
				break
			}
			if !sharesIdent(ordered[i], ordered[j]) {
				continue
			}
			if a.addFlow(ordered[i], ordered[j], true, opts, flowIDs) {
				count++
				if count >= maxFlowsPerFile {
					break
				}
			}
		}
	}

	// Role chains by line order: source feeds the next transformer, the
	// chain's tail feeds sinks and stores. A fresh source starts a fresh
	// chain.
	var lastSource, lastTransformer *flowNode
	for _, fn := range ordered {
		if count >= maxFlowsPerFile {
			break
		}
		switch fn.node.Role {
		case model.RoleSource:
			lastSource = fn
			lastTransformer = nil
		case model.RoleTransformer:
			from := lastTransformer
			if from == nil {
				from = lastSource
			}
			if from != nil && fn.node.Line-from.node.Line <= maxFlowSpan {
				if a.addFlow(from, fn, false, opts, flowIDs) {
					count++
				}
			}
			lastTransformer = fn
		default:
			from := lastTransformer
			if from == nil {
				from = lastSource
			}
			if from != nil && fn.node.Line-from.node.Line <= maxFlowSpan {
				if a.addFlow(from, fn, false, opts, flowIDs) {
					count++
				}
			}
		}
	}
}

func sharesIdent(a, b *flowNode) bool {
	for ident := range a.idents {
		if b.idents[ident] {
			return true
		}
	}
	return false
}

// addFlow appends one deduplicated flow, honoring the async and conditional
// gates. Reports whether a flow was added.
func (a *Analyzer) addFlow(from, to *flowNode, shared bool, opts engine.Options, flowIDs map[string]bool) bool {
	if from == to {
		return false
	}
	async := from.async || to.async
	cond := from.conditional || to.conditional
	if async && !opts.IncludeAsyncFlows {
		return false
	}
	if cond && !opts.IncludeConditionalFlow {
		return false
	}
	id := "flow:" + from.node.ID + "->" + to.node.ID
	if flowIDs[id] {
		return false
	}
	flowIDs[id] = true

	conf := (from.node.Confidence + to.node.Confidence) / 2
	if shared {
		conf = min(0.95, conf+0.15)
	}
	f := &model.DataFlow{
		ID:          id,
		FromID:      from.node.ID,
		ToID:        to.node.ID,
		Async:       async,
		Conditional: cond,
		Confidence:  conf,
	}
	a.hasher.HashDataFlow(f)
	a.flows = append(a.flows, f)
	return true
}

// DiscoverPatterns logs the role census; roles feed flows, not registered
// code patterns.
func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error {
	counts := map[model.DataRole]int{}
	for _, n := range a.nodes {
		counts[n.Role]++
	}
	a.logger.Debug("data roles observed",
		"sources", counts[model.RoleSource], "sinks", counts[model.RoleSink],
		"transformers", counts[model.RoleTransformer], "stores", counts[model.RoleStore])
	return nil
}

// IntegrateAnalysis assembles source-to-sink paths and writes the graph.
func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error {
	paths := buildPaths(a.nodes, a.flows, a.hasher)
	ac.SetDataFlow(&model.DataFlowGraph{Nodes: a.nodes, Flows: a.flows, Paths: paths})
	a.logger.Debug("data flow graph written",
		"nodes", len(a.nodes), "flows", len(a.flows), "paths", len(paths))
	return nil
}

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.nodes = nil
	a.flows = nil
	a.mu.Lock()
	a.pending = map[string][]observation{}
	a.mu.Unlock()
	return nil
}
