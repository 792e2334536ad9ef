package engine

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fathom/internal/fsys"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

// ErrUnknownDependency is returned when an analyzer is registered before one
// of its declared dependencies.
var ErrUnknownDependency = errors.New("analyzer dependency not registered")

// Coordinator owns the registered analyzers and drives them through the
// pipeline phases. Analyzer failures are contained: a failing analyzer
// contributes nothing for that phase and the run continues. Only a root scan
// failure aborts a run.
type Coordinator struct {
	scanner   *fsys.Scanner
	hasher    *incremental.Hasher
	analyzers []Analyzer
	byID      map[string]Analyzer
}

// NewCoordinator creates a coordinator that scans with the given scanner.
func NewCoordinator(scanner *fsys.Scanner) *Coordinator {
	return &Coordinator{
		scanner: scanner,
		hasher:  incremental.NewHasher(),
		byID:    make(map[string]Analyzer),
	}
}

// Register adds an analyzer. Registration fails if a declared dependency has
// not been registered yet, so construction order doubles as a sanity check
// of the pipeline's dependency graph.
func (c *Coordinator) Register(a Analyzer) error {
	if _, dup := c.byID[a.ID()]; dup {
		return fmt.Errorf("analyzer %q already registered", a.ID())
	}
	for _, dep := range a.Dependencies() {
		if _, ok := c.byID[dep]; !ok {
			return fmt.Errorf("analyzer %q: %w: %q", a.ID(), ErrUnknownDependency, dep)
		}
	}
	c.byID[a.ID()] = a
	c.analyzers = append(c.analyzers, a)
	sort.SliceStable(c.analyzers, func(i, j int) bool {
		return c.analyzers[i].Priority() < c.analyzers[j].Priority()
	})
	return nil
}

// Analyzers returns the registered analyzers in priority order.
func (c *Coordinator) Analyzers() []Analyzer {
	return append([]Analyzer(nil), c.analyzers...)
}

// Run executes a full analysis into the context's understanding. Cleanup
// runs for every analyzer whether or not the run succeeds.
func (c *Coordinator) Run(ac *Context) (*model.AnalysisStats, error) {
	started := time.Now()
	defer c.runCleanup(ac, c.analyzers)

	c.runPhase(ac, PhaseInitialization, c.analyzers, func(a Analyzer) error {
		return a.Initialize(ac)
	})

	ac.setPhase(PhaseDiscovery)
	tree, err := c.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	c.hasher.HashTree(tree)
	u := ac.Understanding()
	u.FileSystem = tree
	c.detectLanguages(ac)

	if err := c.analyzeContent(ac, tree.AllFiles(), c.analyzers); err != nil {
		return nil, err
	}

	for _, step := range []struct {
		phase Phase
		call  func(Analyzer) error
	}{
		{PhaseRelationshipMapping, func(a Analyzer) error { return a.ProcessRelationships(ac) }},
		{PhasePatternDiscovery, func(a Analyzer) error { return a.DiscoverPatterns(ac) }},
		{PhaseIntegration, func(a Analyzer) error { return a.IntegrateAnalysis(ac) }},
	} {
		if err := ac.RunContext().Err(); err != nil {
			return nil, err
		}
		c.runPhase(ac, step.phase, c.analyzers, step.call)
	}

	c.hasher.HashUnderstanding(u)
	u.UpdatedAt = time.Now().UTC()
	stats := c.collectStats(u, tree.FileCount, started)
	u.Stats = *stats
	return stats, nil
}

// RunIncremental executes only what the plan demands against a pre-seeded
// understanding. fresh is the newly scanned tree backing the plan; it
// replaces the understanding's previous tree.
func (c *Coordinator) RunIncremental(ac *Context, plan *incremental.UpdatePlan, fresh *model.FileSystemTree) (*model.AnalysisStats, error) {
	if plan.FullRun {
		return c.Run(ac)
	}

	started := time.Now()
	participating := c.selectAnalyzers(plan.AnalyzersToRun)
	defer c.runCleanup(ac, c.analyzers)

	u := ac.Understanding()
	if plan.Empty() {
		u.Stats = *c.collectStats(u, 0, started)
		return &u.Stats, nil
	}

	c.runPhase(ac, PhaseInitialization, participating, func(a Analyzer) error {
		return a.Initialize(ac)
	})

	ac.setPhase(PhaseDiscovery)
	if fresh != nil {
		c.hasher.HashTree(fresh)
		u.FileSystem = fresh
	}
	if slices.Contains(plan.AnalyzersToRun, incremental.AnalyzerLanguage) {
		c.detectLanguages(ac)
	}

	var analyzed int
	if len(plan.TargetFiles) > 0 || len(plan.DeletedFiles) > 0 {
		stale := append(append([]string(nil), plan.TargetFiles...), plan.DeletedFiles...)
		ac.RemoveFileEntities(stale)

		var targets []*model.FileNode
		for _, path := range plan.TargetFiles {
			if f := u.FileSystem.FileByPath(path); f != nil {
				targets = append(targets, f)
			} else {
				ac.Logger().Debug("Planned file missing from fresh tree", "path", path)
			}
		}
		analyzed = len(targets)
		if err := c.analyzeContent(ac, targets, participating); err != nil {
			return nil, err
		}
	}

	for _, step := range []struct {
		phase Phase
		call  func(Analyzer) error
	}{
		{PhaseRelationshipMapping, func(a Analyzer) error { return a.ProcessRelationships(ac) }},
		{PhasePatternDiscovery, func(a Analyzer) error { return a.DiscoverPatterns(ac) }},
		{PhaseIntegration, func(a Analyzer) error { return a.IntegrateAnalysis(ac) }},
	} {
		if err := ac.RunContext().Err(); err != nil {
			return nil, err
		}
		c.runPhase(ac, step.phase, participating, step.call)
	}

	c.hasher.HashUnderstanding(u)
	u.UpdatedAt = time.Now().UTC()
	stats := c.collectStats(u, analyzed, started)
	u.Stats = *stats
	return stats, nil
}

// selectAnalyzers filters registered analyzers by id, keeping priority order.
func (c *Coordinator) selectAnalyzers(ids []string) []Analyzer {
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	var out []Analyzer
	for _, a := range c.analyzers {
		if allowed[a.ID()] {
			out = append(out, a)
		}
	}
	return out
}

// runPhase advances the pipeline and invokes one lifecycle callback per
// analyzer, containing errors and panics.
func (c *Coordinator) runPhase(ac *Context, phase Phase, analyzers []Analyzer, call func(Analyzer) error) {
	ac.setPhase(phase)
	for _, a := range analyzers {
		c.safeCall(ac, a, phase, func() error { return call(a) })
	}
}

// safeCall shields the run from one analyzer's failure.
func (c *Coordinator) safeCall(ac *Context, a Analyzer, phase Phase, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			ac.Logger().Warn("Analyzer panicked, contributing nothing this phase",
				"analyzer", a.ID(), "phase", phase.String(),
				"panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		ac.Logger().Warn("Analyzer failed, contributing nothing this phase",
			"analyzer", a.ID(), "phase", phase.String(), "error", err.Error())
	}
}

// analyzeContent feeds files through the participating analyzers in
// adaptively sized batches. Files within a batch run on a bounded worker
// pool; batches are sequential so released content stays released.
func (c *Coordinator) analyzeContent(ac *Context, files []*model.FileNode, analyzers []Analyzer) error {
	ac.setPhase(PhaseContentAnalysis)
	if len(files) == 0 || len(analyzers) == 0 {
		return nil
	}

	opts := ac.Options()
	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 8)
	}
	b := newBatcher(opts.BatchSize, opts.MemoryLimitBytes, ac.Logger())

	for start := 0; start < len(files); {
		if err := ac.RunContext().Err(); err != nil {
			return err
		}
		end := min(start+b.next(), len(files))
		batch := files[start:end]

		g, gctx := errgroup.WithContext(ac.RunContext())
		g.SetLimit(workers)
		for _, f := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				content, err := ac.FileContent(f.Path)
				if err != nil {
					ac.Logger().Debug("Skipping file", "path", f.Path, "error", err.Error())
					return nil
				}
				for _, a := range analyzers {
					c.safeAnalyzeFile(ac, a, f, content)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		paths := make([]string, len(batch))
		for i, f := range batch {
			paths[i] = f.Path
		}
		ac.ReleaseContent(paths)
		b.afterBatch()
		start = end
	}
	return nil
}

func (c *Coordinator) safeAnalyzeFile(ac *Context, a Analyzer, f *model.FileNode, content []byte) {
	defer func() {
		if r := recover(); r != nil {
			ac.Logger().Warn("Analyzer panicked on file",
				"analyzer", a.ID(), "path", f.Path, "panic", fmt.Sprintf("%v", r))
		}
	}()
	if err := a.AnalyzeFile(ac, f, content); err != nil {
		ac.Logger().Debug("Analyzer skipped file",
			"analyzer", a.ID(), "path", f.Path, "error", err.Error())
	}
}

// runCleanup gives every analyzer its cleanup callback, regardless of how
// the run went.
func (c *Coordinator) runCleanup(ac *Context, analyzers []Analyzer) {
	c.runPhase(ac, PhaseCleanup, analyzers, func(a Analyzer) error {
		return a.Cleanup(ac)
	})
}

// detectLanguages asks the first registered LanguageProvider, falling back
// to a bare extension histogram.
func (c *Coordinator) detectLanguages(ac *Context) {
	for _, a := range c.analyzers {
		if lp, ok := a.(LanguageProvider); ok {
			langs, err := lp.DetectLanguages(ac)
			if err != nil {
				ac.Logger().Warn("Language detection failed, using extension fallback",
					"analyzer", a.ID(), "error", err.Error())
				break
			}
			ac.SetLanguages(langs)
			return
		}
	}
	ac.SetLanguages(extensionHistogram(ac.Understanding().FileSystem))
}

// extensionHistogram is the LanguageProvider-less fallback: one language per
// extension, named after the extension stem.
func extensionHistogram(tree *model.FileSystemTree) map[string]*model.LanguageStructure {
	langs := make(map[string]*model.LanguageStructure)
	if tree == nil {
		return langs
	}
	tree.Walk(func(_ *model.DirectoryNode, f *model.FileNode) {
		ext := f.Extension()
		if ext == "" {
			return
		}
		name := strings.TrimPrefix(ext, ".")
		lang, ok := langs[name]
		if !ok {
			lang = &model.LanguageStructure{
				Name:        name,
				Extensions:  []string{ext},
				FilesByPath: make(map[string]bool),
			}
			langs[name] = lang
		}
		lang.FileCount++
		lang.TotalSize += f.Size
		lang.FilesByPath[f.Path] = true
	})
	return langs
}

// collectStats assembles run statistics from the finished understanding.
// CodeNodes holds every node flat, so its length is the extraction count.
func (c *Coordinator) collectStats(u *model.UnifiedUnderstanding, filesAnalyzed int, started time.Time) *model.AnalysisStats {
	nodes := len(u.CodeNodes)
	flows, paths := 0, 0
	if u.DataFlow != nil {
		flows = len(u.DataFlow.Flows)
		paths = len(u.DataFlow.Paths)
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &model.AnalysisStats{
		TimeTakenMs:             time.Since(started).Milliseconds(),
		MemoryUsageBytes:        int64(ms.HeapAlloc),
		FilesIndexed:            filesAnalyzed,
		NodesExtracted:          nodes,
		PatternsDiscovered:      len(u.Patterns),
		RelationshipsIdentified: len(u.Relationships),
		ConceptsExtracted:       len(u.Concepts),
		DataFlowsDiscovered:     flows,
		DataFlowPathsIdentified: paths,
		DependenciesDiscovered:  len(u.Dependencies),
	}
}

