package engine

import "fathom/internal/model"

// Analyzer is the contract every analysis component implements. The
// coordinator calls the lifecycle methods in phase order; each analyzer is
// free to do nothing in phases that do not concern it.
//
// AnalyzeFile may be called concurrently for different files within a batch.
// Implementations guard their own accumulation state; writes to the shared
// understanding go through Context's locked helpers. All other methods are
// called from a single goroutine.
type Analyzer interface {
	// ID identifies the analyzer for dependency declarations and
	// incremental planning.
	ID() string
	// Priority orders analyzers within a phase; lower runs earlier.
	Priority() int
	// Dependencies lists analyzer ids that must be registered before this
	// one.
	Dependencies() []string

	Initialize(ac *Context) error
	AnalyzeFile(ac *Context, file *model.FileNode, content []byte) error
	ProcessRelationships(ac *Context) error
	DiscoverPatterns(ac *Context) error
	IntegrateAnalysis(ac *Context) error
	Cleanup(ac *Context) error
}

// LanguageProvider is a capability interface. The coordinator probes
// registered analyzers for it during discovery; the first one found supplies
// the language map. Without one the coordinator falls back to a bare
// extension histogram.
type LanguageProvider interface {
	DetectLanguages(ac *Context) (map[string]*model.LanguageStructure, error)
}
