package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fathom/internal/config"
	"fathom/internal/fsys"
	"fathom/internal/model"
)

// Options are the per-run settings the coordinator and analyzers consult.
type Options struct {
	BatchSize              int
	Workers                int
	MemoryLimitBytes       int64
	MaxFileSizeBytes       int64
	SemanticAnalysis       bool
	IncludeAsyncFlows      bool
	IncludeConditionalFlow bool
}

// OptionsFromConfig maps the analysis section of the configuration onto run
// options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:              cfg.Analysis.BatchSize,
		Workers:                cfg.Analysis.Workers,
		MemoryLimitBytes:       cfg.Analysis.MemoryLimitBytes,
		MaxFileSizeBytes:       cfg.Analysis.MaxFileSizeBytes,
		SemanticAnalysis:       cfg.Analysis.SemanticAnalysis,
		IncludeAsyncFlows:      cfg.Analysis.IncludeAsyncFlows,
		IncludeConditionalFlow: cfg.Analysis.IncludeConditionalFlow,
	}
}

// Context is the shared state of one analysis run. Analyzers communicate
// exclusively through it: earlier phases write, later phases read. The
// mutating helpers are safe for concurrent use during content analysis.
type Context struct {
	runCtx     context.Context
	fs         fsys.FS
	options    Options
	thresholds config.ThresholdsConfig
	vocab      *config.Vocab
	logger     *slog.Logger

	mu            sync.Mutex
	understanding *model.UnifiedUnderstanding
	phase         Phase
	relIDs        map[string]bool
	contentCache  map[string][]byte
	cacheBytes    int64
}

// NewContext creates the shared context for one run. runCtx carries
// cancellation for the whole run; understanding is the (possibly pre-seeded)
// container the run mutates.
func NewContext(runCtx context.Context, fs fsys.FS, u *model.UnifiedUnderstanding,
	opts Options, thresholds config.ThresholdsConfig, vocab *config.Vocab, logger *slog.Logger) *Context {
	if vocab == nil {
		vocab = config.DefaultVocab()
	}
	return &Context{
		runCtx:        runCtx,
		fs:            fs,
		options:       opts,
		thresholds:    thresholds,
		vocab:         vocab,
		logger:        logger,
		understanding: u,
		phase:         PhaseInitialization,
		relIDs:        make(map[string]bool),
		contentCache:  make(map[string][]byte),
	}
}

// RunContext returns the cancellation context of the run.
func (c *Context) RunContext() context.Context { return c.runCtx }

// FS returns the filesystem the run reads from.
func (c *Context) FS() fsys.FS { return c.fs }

// Options returns the run options.
func (c *Context) Options() Options { return c.options }

// Thresholds returns the evidence gates for this run.
func (c *Context) Thresholds() config.ThresholdsConfig { return c.thresholds }

// Vocab returns the vocabulary lists for this run.
func (c *Context) Vocab() *config.Vocab { return c.vocab }

// Logger returns the run logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Phase returns the pipeline phase currently executing.
func (c *Context) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Context) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Understanding returns the understanding under construction. Reading it is
// safe between phases; during content analysis use the locked helpers.
func (c *Context) Understanding() *model.UnifiedUnderstanding {
	return c.understanding
}

// FileContent returns a file's bytes, reading through the per-run cache.
// Files above the size limit are refused rather than loaded.
func (c *Context) FileContent(path string) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.contentCache[path]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	if c.options.MaxFileSizeBytes > 0 {
		if info, err := c.fs.Stat(path); err == nil && info.Size > c.options.MaxFileSizeBytes {
			return nil, fmt.Errorf("file %s exceeds size limit (%d bytes)", path, info.Size)
		}
	}
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.contentCache[path] = data
	c.cacheBytes += int64(len(data))
	c.mu.Unlock()
	return data, nil
}

// ReleaseContent drops cached content for the given paths. Analyzers re-read
// through FileContent if they need a released file again.
func (c *Context) ReleaseContent(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		if data, ok := c.contentCache[p]; ok {
			c.cacheBytes -= int64(len(data))
			delete(c.contentCache, p)
		}
	}
}

// CachedBytes returns how much file content is currently held.
func (c *Context) CachedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheBytes
}

// AddCodeNode registers a top-level code node.
func (c *Context) AddCodeNode(n *model.CodeNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.CodeNodes[n.ID] = n
}

// AddRelationship appends an edge, dropping exact duplicates by id.
func (c *Context) AddRelationship(r *model.Relationship) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relIDs[r.ID] {
		return
	}
	c.relIDs[r.ID] = true
	c.understanding.Relationships = append(c.understanding.Relationships, r)
}

// AddPattern appends a discovered pattern.
func (c *Context) AddPattern(p *model.CodePattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Patterns = append(c.understanding.Patterns, p)
}

// AddDependency appends a resolved dependency.
func (c *Context) AddDependency(d *model.Dependency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Dependencies = append(c.understanding.Dependencies, d)
}

// AddConcept appends an extracted concept.
func (c *Context) AddConcept(con *model.Concept) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Concepts = append(c.understanding.Concepts, con)
}

// AddSemanticUnit appends a formed unit.
func (c *Context) AddSemanticUnit(u *model.SemanticUnit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.SemanticUnits = append(c.understanding.SemanticUnits, u)
}

// AddCluster appends a cluster.
func (c *Context) AddCluster(cl *model.CodeCluster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Clusters = append(c.understanding.Clusters, cl)
}

// SetLanguages replaces the language map.
func (c *Context) SetLanguages(langs map[string]*model.LanguageStructure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Languages = langs
}

// SetDataFlow replaces the data flow graph.
func (c *Context) SetDataFlow(g *model.DataFlowGraph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.DataFlow = g
}

// Analyzers that recompute a collection globally clear it before re-adding,
// so incremental runs never duplicate derived entities. Each analyzer resets
// only the collections it owns.

// ResetPatterns clears discovered patterns.
func (c *Context) ResetPatterns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Patterns = nil
}

// ResetConcepts clears extracted concepts.
func (c *Context) ResetConcepts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Concepts = nil
}

// ResetSemanticUnits clears formed units.
func (c *Context) ResetSemanticUnits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.SemanticUnits = nil
}

// ResetClusters clears clusters.
func (c *Context) ResetClusters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Clusters = nil
}

// ResetRelationships clears the edge list.
func (c *Context) ResetRelationships() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Relationships = nil
	c.relIDs = make(map[string]bool)
}

// ResetDependencies clears resolved dependencies.
func (c *Context) ResetDependencies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.understanding.Dependencies = nil
}

// RemoveFileEntities drops every entity extracted from the given files:
// their code nodes, edges touching those nodes, their dependencies and
// their data flow nodes. Incremental runs call this for changed and deleted
// files before re-analyzing.
func (c *Context) RemoveFileEntities(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gone := make(map[string]bool, len(paths))
	for _, p := range paths {
		gone[p] = true
	}

	removedNodes := make(map[string]bool)
	for id, n := range c.understanding.CodeNodes {
		if gone[n.Path] {
			removedNodes[id] = true
			delete(c.understanding.CodeNodes, id)
		}
	}

	kept := c.understanding.Relationships[:0]
	for _, r := range c.understanding.Relationships {
		if removedNodes[r.SourceID] || removedNodes[r.TargetID] {
			delete(c.relIDs, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	c.understanding.Relationships = kept

	deps := c.understanding.Dependencies[:0]
	for _, d := range c.understanding.Dependencies {
		if gone[d.SourcePath] {
			continue
		}
		deps = append(deps, d)
	}
	c.understanding.Dependencies = deps

	if c.understanding.DataFlow != nil {
		removedData := make(map[string]bool)
		for id, n := range c.understanding.DataFlow.Nodes {
			if gone[n.Path] {
				removedData[id] = true
				delete(c.understanding.DataFlow.Nodes, id)
			}
		}
		flows := c.understanding.DataFlow.Flows[:0]
		for _, f := range c.understanding.DataFlow.Flows {
			if removedData[f.FromID] || removedData[f.ToID] {
				continue
			}
			flows = append(flows, f)
		}
		c.understanding.DataFlow.Flows = flows
		c.understanding.DataFlow.Paths = nil
	}
}
