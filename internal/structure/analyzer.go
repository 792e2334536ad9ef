// Package structure extracts code nodes from file content and derives the
// relationships between them. Extraction parses with tree-sitter when the
// binary is built with cgo and falls back to line-oriented heuristics
// otherwise; both produce the same node shapes and the same per-node
// evidence, so everything downstream is extractor-agnostic.
//
// Evidence lives in node metadata rather than analyzer state. The
// relationship pass rebuilds every edge from the metadata of all nodes in
// the understanding, which makes it equally correct after a full run, an
// incremental run that re-analyzed two files, or a snapshot load.
package structure

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	containsConfidence  = 0.95
	inheritConfidence   = 0.8
	embedConfidence     = 0.5
	referenceConfidence = 0.6
	callConfidence      = 0.7

	// maxEdgesPerFile caps reference and call edges originating in one file.
	maxEdgesPerFile = 150
	// maxNameTargets drops names declared in more places than an edge could
	// meaningfully point at.
	maxNameTargets = 3

	maxRefEvidence     = 50
	maxCallEvidence    = 30
	minEvidenceNameLen = 3
)

// Metadata keys carrying extraction evidence between phases and runs.
const (
	metaExtractor  = "extractor"
	metaRefs       = "refs"       // "name=count ..." identifier census
	metaCalls      = "calls"      // "name ..." called identifiers
	metaExtends    = "extends"    // "name ..." extends clause parents
	metaImplements = "implements" // "name ..." implements clause parents
	metaEmbeds     = "embeds"     // "name ..." Go embedded types
	metaImpls      = "impls"      // "Child>Parent ..." impl-for pairs, file node only
)

// Analyzer turns file content into code nodes during content analysis and
// rebuilds the relationship graph from node evidence afterwards.
type Analyzer struct {
	logger  *slog.Logger
	hasher  *incremental.Hasher
	precise *preciseExtractor

	stopwords map[string]bool // set at Initialize, read-only afterwards
}

// NewAnalyzer creates the structure analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger:  logger,
		hasher:  incremental.NewHasher(),
		precise: newPreciseExtractor(),
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "structure" }
func (a *Analyzer) Priority() int          { return 20 }
func (a *Analyzer) Dependencies() []string { return []string{"language"} }

func (a *Analyzer) Initialize(ac *engine.Context) error {
	a.stopwords = ac.Vocab().StopwordSet()
	a.logger.Debug("structure extraction ready", "precise", preciseAvailable())
	return nil
}

// AnalyzeFile extracts the node tree for one file, annotates each node with
// reference evidence and registers everything in the understanding. Safe for
// concurrent calls; all written state is per-file.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	ex := extractFile(file.Path, file.Name, content)
	if pex, ok := a.precise.extract(ac.RunContext(), file.Path, file.Name, strings.ToLower(file.Extension()), content); ok {
		ex = pex
	}

	annotateEvidence(ex, content, a.stopwords)
	a.hasher.HashCodeNode(ex.Root)
	for _, n := range ex.Nodes {
		ac.AddCodeNode(n)
	}
	return nil
}

// ProcessRelationships rebuilds the whole edge list from node evidence. The
// rebuild is deterministic: nodes are visited in id order and every edge id
// is a slug of its endpoints. Analyzers that run later in this phase add
// their own edges on top.
func (a *Analyzer) ProcessRelationships(ac *engine.Context) error {
	ac.ResetRelationships()
	u := ac.Understanding()

	ids := make([]string, 0, len(u.CodeNodes))
	for id := range u.CodeNodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := buildNameIndex(u.CodeNodes, ids)
	edgesPerFile := make(map[string]int)
	edges := 0

	for _, id := range ids {
		n := u.CodeNodes[id]
		for _, child := range n.Children {
			a.addEdge(ac, model.RelContains, n.ID, child.ID, 1, containsConfidence)
			edges++
		}
		edges += a.inheritanceEdges(ac, n, index)
		edges += a.evidenceEdges(ac, n, index, edgesPerFile)
	}

	a.logger.Debug("relationships rebuilt", "nodes", len(ids), "edges", edges)
	return nil
}

func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error  { return nil }
func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error { return nil }

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.stopwords = nil
	return nil
}

func (a *Analyzer) addEdge(ac *engine.Context, t model.RelationshipType, src, dst string, weight, confidence float64) {
	r := &model.Relationship{
		ID:         "rel:" + string(t) + ":" + src + "->" + dst,
		Type:       t,
		SourceID:   src,
		TargetID:   dst,
		Weight:     weight,
		Confidence: confidence,
	}
	a.hasher.HashRelationship(r)
	ac.AddRelationship(r)
}

// inheritanceEdges resolves extends/implements/embeds evidence against the
// name index. Confidence is split across candidates when a parent name is
// declared in several places.
func (a *Analyzer) inheritanceEdges(ac *engine.Context, n *model.CodeNode, index map[string][]*model.CodeNode) int {
	edges := 0
	emit := func(key string, relType model.RelationshipType, confidence float64) {
		for _, parent := range strings.Fields(n.Metadata[key]) {
			targets := typeTargets(index[parent], n.ID)
			for _, t := range targets {
				a.addEdge(ac, relType, n.ID, t.ID, 1, confidence/float64(len(targets)))
				edges++
			}
		}
	}
	emit(metaExtends, model.RelExtends, inheritConfidence)
	emit(metaImplements, model.RelImplements, inheritConfidence)
	emit(metaEmbeds, model.RelExtends, embedConfidence)

	// Impl-for pairs name both endpoints; the node carrying them is the file.
	for _, pair := range strings.Fields(n.Metadata[metaImpls]) {
		child, parent, ok := strings.Cut(pair, ">")
		if !ok {
			continue
		}
		children := typeTargets(index[child], "")
		parents := typeTargets(index[parent], "")
		pairs := len(children) * len(parents)
		if pairs == 0 {
			continue
		}
		for _, c := range children {
			for _, p := range parents {
				if c.ID == p.ID {
					continue
				}
				a.addEdge(ac, model.RelImplements, c.ID, p.ID, 1, inheritConfidence/float64(pairs))
				edges++
			}
		}
	}
	return edges
}

// evidenceEdges turns the refs and calls censuses into edges, capped per
// source file so one dense file cannot flood the graph.
func (a *Analyzer) evidenceEdges(ac *engine.Context, n *model.CodeNode, index map[string][]*model.CodeNode, edgesPerFile map[string]int) int {
	edges := 0
	room := func() bool { return edgesPerFile[n.Path] < maxEdgesPerFile }

	for _, ref := range parseCounts(n.Metadata[metaRefs]) {
		if !room() {
			return edges
		}
		targets := withoutSelf(index[ref.name], n.ID)
		if len(targets) == 0 {
			continue
		}
		confidence := referenceConfidence / float64(len(targets))
		weight := min(1, float64(ref.count)/5)
		for _, t := range targets {
			if !room() {
				return edges
			}
			a.addEdge(ac, model.RelReferences, n.ID, t.ID, weight, confidence)
			edgesPerFile[n.Path]++
			edges++
		}
	}

	for _, name := range strings.Fields(n.Metadata[metaCalls]) {
		if !room() {
			return edges
		}
		targets := callableTargets(index[name], n.ID)
		if len(targets) == 0 {
			continue
		}
		confidence := callConfidence / float64(len(targets))
		for _, t := range targets {
			if !room() {
				return edges
			}
			a.addEdge(ac, model.RelCalls, n.ID, t.ID, 1, confidence)
			edgesPerFile[n.Path]++
			edges++
		}
	}
	return edges
}

// indexedTypes are the node kinds a bare name can plausibly refer to.
var indexedTypes = map[model.NodeType]bool{
	model.NodeClass:     true,
	model.NodeInterface: true,
	model.NodeEnum:      true,
	model.NodeTypeDef:   true,
	model.NodeFunction:  true,
	model.NodeMethod:    true,
	model.NodeNamespace: true,
	model.NodeModule:    true,
}

// buildNameIndex maps declared names to their nodes, visiting nodes in id
// order so target lists are deterministic. Names with too many declarations
// are dropped as unresolvable.
func buildNameIndex(nodes map[string]*model.CodeNode, sortedIDs []string) map[string][]*model.CodeNode {
	index := make(map[string][]*model.CodeNode)
	for _, id := range sortedIDs {
		n := nodes[id]
		if !indexedTypes[n.Type] || len(n.Name) < minEvidenceNameLen {
			continue
		}
		index[n.Name] = append(index[n.Name], n)
	}
	for name, targets := range index {
		if len(targets) > maxNameTargets {
			delete(index, name)
		}
	}
	return index
}

func withoutSelf(targets []*model.CodeNode, selfID string) []*model.CodeNode {
	out := targets[:0:0]
	for _, t := range targets {
		if t.ID != selfID {
			out = append(out, t)
		}
	}
	return out
}

func typeTargets(targets []*model.CodeNode, selfID string) []*model.CodeNode {
	out := targets[:0:0]
	for _, t := range targets {
		if t.ID != selfID && (classLike[t.Type] || t.Type == model.NodeTypeDef) {
			out = append(out, t)
		}
	}
	return out
}

func callableTargets(targets []*model.CodeNode, selfID string) []*model.CodeNode {
	out := targets[:0:0]
	for _, t := range targets {
		if t.ID != selfID && (t.Type == model.NodeFunction || t.Type == model.NodeMethod) {
			out = append(out, t)
		}
	}
	return out
}

type nameCount struct {
	name  string
	count int
}

// annotateEvidence fills each node's metadata with the identifier census of
// its exclusive span: lines it owns directly, not lines owned by a child.
// Inheritance clauses found during extraction are folded in as name lists.
func annotateEvidence(ex *extraction, content []byte, stopwords map[string]bool) {
	byID := make(map[string]*model.CodeNode, len(ex.Nodes))
	for _, n := range ex.Nodes {
		byID[n.ID] = n
	}
	for _, cl := range ex.Inherits {
		if cl.ChildName != "" {
			appendName(ex.Root, metaImpls, cl.ChildName+">"+cl.Parent)
			continue
		}
		n := byID[cl.ChildID]
		if n == nil {
			continue
		}
		switch {
		case cl.Type == model.RelImplements:
			appendName(n, metaImplements, cl.Parent)
		case cl.Embedded:
			appendName(n, metaEmbeds, cl.Parent)
		default:
			appendName(n, metaExtends, cl.Parent)
		}
	}

	lines := strings.Split(string(content), "\n")

	// Owner per line: nodes are listed parents before children, so later
	// writes hand a line to the innermost node that spans it.
	owner := make([]int, len(lines)+1)
	for i, n := range ex.Nodes {
		for ln := n.Location.StartLine; ln <= n.Location.EndLine && ln <= len(lines); ln++ {
			owner[ln] = i
		}
	}

	counts := make([]map[string]int, len(ex.Nodes))
	calls := make([][]string, len(ex.Nodes))
	callSeen := make([]map[string]bool, len(ex.Nodes))
	for i := range ex.Nodes {
		counts[i] = make(map[string]int)
		callSeen[i] = make(map[string]bool)
	}

	for ln := 1; ln <= len(lines); ln++ {
		i := owner[ln]
		n := ex.Nodes[i]
		scanIdentifiers(lines[ln-1], func(name string, called bool) {
			if len(name) < minEvidenceNameLen {
				return
			}
			lower := strings.ToLower(name)
			if codeKeywords[lower] {
				return
			}
			if called && name != n.Name && !callSeen[i][name] && len(calls[i]) < maxCallEvidence {
				callSeen[i][name] = true
				calls[i] = append(calls[i], name)
			}
			if stopwords[lower] {
				return
			}
			counts[i][name]++
		})
	}

	for i, n := range ex.Nodes {
		// The declaration line mentions the node's own name once.
		if counts[i][n.Name] > 0 {
			counts[i][n.Name]--
		}
		if refs := formatCounts(counts[i]); refs != "" {
			n.Metadata[metaRefs] = refs
		}
		if len(calls[i]) > 0 {
			n.Metadata[metaCalls] = strings.Join(calls[i], " ")
		}
	}
}

func appendName(n *model.CodeNode, key, name string) {
	current := n.Metadata[key]
	if current == "" {
		n.Metadata[key] = name
		return
	}
	for _, existing := range strings.Fields(current) {
		if existing == name {
			return
		}
	}
	n.Metadata[key] = current + " " + name
}

// formatCounts renders a census as "name=count ..." ordered by count then
// name, keeping only the strongest entries.
func formatCounts(counts map[string]int) string {
	list := make([]nameCount, 0, len(counts))
	for name, c := range counts {
		if c > 0 {
			list = append(list, nameCount{name, c})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].name < list[j].name
	})
	if len(list) > maxRefEvidence {
		list = list[:maxRefEvidence]
	}
	parts := make([]string, len(list))
	for i, nc := range list {
		parts[i] = nc.name + "=" + strconv.Itoa(nc.count)
	}
	return strings.Join(parts, " ")
}

func parseCounts(s string) []nameCount {
	if s == "" {
		return nil
	}
	var out []nameCount
	for _, field := range strings.Fields(s) {
		name, num, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		c, err := strconv.Atoi(num)
		if err != nil || c <= 0 {
			continue
		}
		out = append(out, nameCount{name, c})
	}
	return out
}

// scanIdentifiers walks a line and reports each identifier, flagging ones
// directly followed by an opening parenthesis.
func scanIdentifiers(line string, emit func(name string, called bool)) {
	for pos := 0; pos < len(line); {
		c := line[pos]
		if !isIdentStart(c) {
			// Skip the remainder of a run that began with a digit.
			for pos < len(line) && isIdentByte(line[pos]) {
				pos++
			}
			if !isIdentByte(c) {
				pos++
			}
			continue
		}
		start := pos
		for pos < len(line) && isIdentByte(line[pos]) {
			pos++
		}
		next := pos
		for next < len(line) && line[next] == ' ' {
			next++
		}
		emit(line[start:pos], next < len(line) && line[next] == '(')
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// codeKeywords are language keywords and primitive type names excluded from
// reference evidence. Compared lowercase.
var codeKeywords = map[string]bool{
	"abstract": true, "and": true, "any": true, "assert": true, "async": true,
	"await": true, "bool": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "chan": true, "char": true, "class": true,
	"const": true, "continue": true, "def": true, "default": true,
	"defer": true, "del": true, "double": true, "elif": true, "else": true,
	"enum": true, "error": true, "except": true, "export": true,
	"extends": true, "false": true, "final": true, "finally": true,
	"float": true, "float32": true, "float64": true, "for": true, "from": true,
	"func": true, "function": true, "global": true, "goto": true, "impl": true,
	"implements": true, "import": true, "instanceof": true, "int": true,
	"int32": true, "int64": true, "interface": true, "lambda": true,
	"let": true, "long": true, "map": true, "match": true, "mod": true,
	"module": true, "mut": true, "namespace": true, "native": true,
	"new": true, "nil": true, "none": true, "not": true, "null": true,
	"number": true, "operator": true, "override": true, "package": true,
	"pass": true, "print": true, "println": true, "private": true,
	"protected": true, "pub": true, "public": true, "raise": true,
	"range": true, "readonly": true, "require": true, "return": true,
	"sealed": true, "select": true, "self": true, "short": true,
	"signed": true, "sizeof": true, "static": true, "std": true,
	"string": true, "struct": true, "super": true, "switch": true,
	"then": true, "this": true, "throw": true, "throws": true, "trait": true,
	"true": true, "try": true, "type": true, "typedef": true, "typeof": true,
	"uint": true, "undefined": true, "union": true, "unsigned": true,
	"use": true, "using": true, "var": true, "virtual": true, "void": true,
	"volatile": true, "when": true, "where": true, "while": true,
	"with": true, "yield": true,
}
