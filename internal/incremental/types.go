// Package incremental tracks what changed between two analyses and decides
// how much of the pipeline has to rerun.
//
// Scope: entity-level hashing, structural diffs, and the fixed invalidation
// cascade between analyzers. File-level granularity for content analysis.
// Limitation: renames are seen as delete+add; no attempt is made to carry
// analysis results across a rename.
package incremental

// ChangeType classifies one entity's fate between two analyses.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
)

// Analyzer ids as the cascade knows them. Analyzer implementations must
// register under these ids for incremental planning to reach them.
const (
	AnalyzerLanguage  = "language"
	AnalyzerStructure = "structure"
	AnalyzerImports   = "imports"
	AnalyzerDataflow  = "dataflow"
	AnalyzerPatterns  = "patterns"
	AnalyzerSemantic  = "semantic"
	AnalyzerCluster   = "cluster"
)

// AllAnalyzers lists every analyzer id in pipeline order.
var AllAnalyzers = []string{
	AnalyzerLanguage,
	AnalyzerStructure,
	AnalyzerImports,
	AnalyzerDataflow,
	AnalyzerPatterns,
	AnalyzerSemantic,
	AnalyzerCluster,
}

// CollectionDiff is the outcome of comparing one entity collection. Keys are
// file paths for the file collection and entity ids everywhere else.
type CollectionDiff struct {
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// Empty reports whether nothing was added, modified or deleted.
func (d CollectionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// ChangedCount returns how many entries differ between the two sides.
func (d CollectionDiff) ChangedCount() int {
	return len(d.Added) + len(d.Modified) + len(d.Deleted)
}

// UnderstandingDiff compares every collection of two understandings.
type UnderstandingDiff struct {
	Files         CollectionDiff `json:"files"`
	CodeNodes     CollectionDiff `json:"codeNodes"`
	Relationships CollectionDiff `json:"relationships"`
	Patterns      CollectionDiff `json:"patterns"`
	Dependencies  CollectionDiff `json:"dependencies"`
	DataFlows     CollectionDiff `json:"dataFlows"`
	Concepts      CollectionDiff `json:"concepts"`
	SemanticUnits CollectionDiff `json:"semanticUnits"`
	Clusters      CollectionDiff `json:"clusters"`
}

// Empty reports whether the two understandings are structurally identical.
func (d *UnderstandingDiff) Empty() bool {
	return d.Files.Empty() && d.CodeNodes.Empty() && d.Relationships.Empty() &&
		d.Patterns.Empty() && d.Dependencies.Empty() && d.DataFlows.Empty() &&
		d.Concepts.Empty() && d.SemanticUnits.Empty() && d.Clusters.Empty()
}

// UpdatePlan says what an incremental run must redo.
type UpdatePlan struct {
	FullRun        bool     `json:"fullRun"`
	AnalyzersToRun []string `json:"analyzersToRun,omitempty"`
	TargetFiles    []string `json:"targetFiles,omitempty"`  // files needing content re-analysis
	DeletedFiles   []string `json:"deletedFiles,omitempty"` // files whose entities must go
	Reason         string   `json:"reason"`
}

// Empty reports whether the plan requires no work at all.
func (p *UpdatePlan) Empty() bool {
	return !p.FullRun && len(p.AnalyzersToRun) == 0 && len(p.TargetFiles) == 0 && len(p.DeletedFiles) == 0
}

// Config holds incremental planning knobs.
type Config struct {
	// FullRunThreshold is the changed-file fraction above which planning
	// gives up on incrementality and recommends a full run.
	FullRunThreshold float64 `json:"fullRunThreshold"`
}

// DefaultConfig returns the default incremental configuration.
func DefaultConfig() *Config {
	return &Config{FullRunThreshold: 0.5}
}
