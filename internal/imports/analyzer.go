// Package imports discovers dependency statements without language-specific
// parsers. It samples lines pairing an import or export keyword with a
// quoted path, induces regular expressions from the repeated line shapes,
// and runs those induced patterns back over the samples to extract, classify
// and resolve module specifiers. Export-form lines (re-exports) produce
// export statements and exports edges; both forms count as dependencies.
//
// Like structure, the analyzer keeps its evidence in file root node metadata
// and rebuilds all dependencies and import edges from the full corpus during
// relationship mapping, so incremental runs and snapshot loads behave the
// same as full runs.
package imports

import (
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	maxSamplesPerFile = 60
	maxSampleLineLen  = 240
	maxSpecifierLen   = 200
	maxPatterns       = 12
	// minPairCount is how often a keyword must co-occur with a quoted path
	// before its lines take part in induction.
	minPairCount = 2
	// stdlibMinDirs is how many distinct importer directories an unresolved
	// bare specifier needs to count as a standard library module.
	stdlibMinDirs = 2
)

// metaImportLines is the file root metadata key carrying sampled lines.
const metaImportLines = "importLines"

// Analyzer induces import syntax from the codebase and derives dependencies
// from it.
type Analyzer struct {
	logger *slog.Logger
	hasher *incremental.Hasher
	cache  *patternCache

	mu      sync.Mutex
	pending map[string][]candidate // fresh samples per path, this run

	patterns []*pattern // induced during relationship mapping
}

// NewAnalyzer creates the imports analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger:  logger,
		hasher:  incremental.NewHasher(),
		cache:   newPatternCache(),
		pending: map[string][]candidate{},
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "imports" }
func (a *Analyzer) Priority() int          { return 30 }
func (a *Analyzer) Dependencies() []string { return []string{"structure"} }

func (a *Analyzer) Initialize(ac *engine.Context) error { return nil }

// AnalyzeFile samples candidate import lines. Samples are buffered and
// written to the file's root node during relationship mapping, where access
// to the node map is single threaded.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	cands := sampleLines(content)
	a.mu.Lock()
	// Empty results are kept so re-analysis clears stale evidence.
	a.pending[file.Path] = cands
	a.mu.Unlock()
	return nil
}

// ProcessRelationships rebuilds every dependency and import edge from the
// sampled evidence of all files: induce patterns from the corpus, match each
// file's samples, classify and resolve the specifiers.
func (a *Analyzer) ProcessRelationships(ac *engine.Context) error {
	u := ac.Understanding()

	roots := make(map[string]*model.CodeNode)
	for _, n := range u.CodeNodes {
		if n.Type == model.NodeFile {
			roots[n.Path] = n
		}
	}
	a.flushPending(roots)

	corpus := make(map[string][]candidate)
	for p, root := range roots {
		if cands := decodeCandidates(root.Metadata[metaImportLines]); len(cands) > 0 {
			corpus[p] = cands
		}
	}

	a.patterns = inducePatterns(corpus, a.hasher)

	paths := make([]string, 0, len(corpus))
	for p := range corpus {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	res := newResolver(u)
	impsByPath := make(map[string][]model.ImportStatement, len(paths))
	expsByPath := make(map[string][]model.ExportStatement, len(paths))
	for _, p := range paths {
		imps, exps := a.matchFile(p, corpus[p])
		impsByPath[p] = imps
		expsByPath[p] = exps
		for _, s := range imps {
			res.record(p, s.ModuleSpecifier)
		}
		for _, s := range exps {
			res.record(p, s.ModuleSpecifier)
		}
	}

	ac.ResetDependencies()
	deps, edges := 0, 0
	for _, p := range paths {
		seen := map[string]bool{}
		addDep := func(spec string, typ model.DependencyType, resolved string, conf float64) {
			if seen[spec] {
				return
			}
			seen[spec] = true
			d := &model.Dependency{
				ID:              "dep:" + p + "->" + spec,
				SourcePath:      p,
				ModuleSpecifier: spec,
				Type:            typ,
				ResolvedPath:    resolved,
				Confidence:      conf,
			}
			a.hasher.HashDependency(d)
			ac.AddDependency(d)
			deps++
		}
		addEdge := func(relType model.RelationshipType, resolved string, conf float64) {
			if resolved == "" || roots[resolved] == nil {
				return
			}
			src, dst := roots[p].ID, roots[resolved].ID
			r := &model.Relationship{
				ID:         "rel:" + string(relType) + ":" + src + "->" + dst,
				Type:       relType,
				SourceID:   src,
				TargetID:   dst,
				Weight:     1,
				Confidence: conf,
			}
			a.hasher.HashRelationship(r)
			ac.AddRelationship(r)
			edges++
		}

		imps := impsByPath[p]
		for i := range imps {
			s := &imps[i]
			s.Type, s.ResolvedPath, s.Confidence = res.classify(p, s.ModuleSpecifier)
			addDep(s.ModuleSpecifier, s.Type, s.ResolvedPath, s.Confidence)
			relType := model.RelImports
			if s.Type == model.DepInternalModule {
				relType = model.RelDependsOn
			}
			addEdge(relType, s.ResolvedPath, s.Confidence)
		}

		// A re-export still depends on its source, so exports feed the same
		// dependency set; the edge type is what distinguishes them.
		exps := expsByPath[p]
		for i := range exps {
			s := &exps[i]
			s.Type, s.ResolvedPath, s.Confidence = res.classify(p, s.ModuleSpecifier)
			addDep(s.ModuleSpecifier, s.Type, s.ResolvedPath, s.Confidence)
			addEdge(model.RelExports, s.ResolvedPath, s.Confidence)
		}
	}

	a.logger.Debug("dependencies resolved",
		"files", len(paths), "patterns", len(a.patterns), "dependencies", deps, "edges", edges)
	return nil
}

// flushPending writes this run's samples into the file root nodes. Metadata
// is excluded from node hashing, so evidence updates never ripple into
// structural diffs.
func (a *Analyzer) flushPending(roots map[string]*model.CodeNode) {
	a.mu.Lock()
	pending := a.pending
	a.pending = map[string][]candidate{}
	a.mu.Unlock()

	for p, cands := range pending {
		root := roots[p]
		if root == nil {
			continue
		}
		if root.Metadata == nil {
			root.Metadata = map[string]string{}
		}
		if encoded := encodeCandidates(cands); encoded != "" {
			root.Metadata[metaImportLines] = encoded
		} else {
			delete(root.Metadata, metaImportLines)
		}
	}
}

// matchFile runs the induced patterns over one file's samples, split into
// import and export statements by the sampled keyword. Patterns that already
// matched on this extension are tried first, and every success feeds that
// ranking, so patterns learn which languages they apply to.
func (a *Analyzer) matchFile(p string, cands []candidate) ([]model.ImportStatement, []model.ExportStatement) {
	ext := strings.ToLower(path.Ext(p))
	ordered := make([]*pattern, len(a.patterns))
	copy(ordered, a.patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score[ext] > ordered[j].Score[ext]
	})

	var imps []model.ImportStatement
	var exps []model.ExportStatement
	for _, c := range cands {
		for _, pat := range ordered {
			if pat.Keyword != c.Keyword {
				continue
			}
			re := a.cache.get(pat)
			if re == nil {
				continue
			}
			m := re.FindStringSubmatch(c.Raw)
			if m == nil {
				continue
			}
			spec := m[1]
			if spec == "" || len(spec) > maxSpecifierLen {
				continue
			}
			pat.Score[ext]++
			if exportKeywords[c.Keyword] {
				exps = append(exps, model.ExportStatement{
					ModuleSpecifier: spec,
					Raw:             c.Raw,
					Line:            c.Line,
				})
			} else {
				imps = append(imps, model.ImportStatement{
					ModuleSpecifier: spec,
					Raw:             c.Raw,
					Line:            c.Line,
				})
			}
			break
		}
	}
	return imps, exps
}

// DiscoverPatterns reports the induced syntax; the patterns themselves are
// analyzer machinery, not registered code patterns.
func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error {
	for _, p := range a.patterns {
		a.logger.Debug("import pattern",
			"keyword", p.Keyword, "samples", p.Count, "source", p.Source)
	}
	return nil
}

func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error { return nil }

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.patterns = nil
	a.mu.Lock()
	a.pending = map[string][]candidate{}
	a.mu.Unlock()
	return nil
}
