package incremental

import "sort"

// Cascade rules. A change at one layer invalidates every analyzer whose
// input can depend on that layer. The mapping deliberately over-approximates
// so a stale result can never survive an incremental run.
//
//	filesystem change    -> everything
//	code structure       -> everything except language detection
//	relationship layer   -> semantic, cluster (dependencies and data flows
//	                        ride this rule too)
//	pattern change       -> semantic, cluster
//	semantic change      -> cluster
var cascadeAll = AllAnalyzers

var cascadeStructure = []string{
	AnalyzerStructure,
	AnalyzerImports,
	AnalyzerDataflow,
	AnalyzerPatterns,
	AnalyzerSemantic,
	AnalyzerCluster,
}

var cascadeRelationship = []string{AnalyzerSemantic, AnalyzerCluster}

var cascadeSemantic = []string{AnalyzerCluster}

// CalculateAnalyzersToRun maps a diff to the set of analyzers an incremental
// run must rerun, sorted and deduplicated. An empty diff yields nil.
func CalculateAnalyzersToRun(diff *UnderstandingDiff) []string {
	if diff == nil || diff.Empty() {
		return nil
	}
	set := make(map[string]bool)

	if !diff.Files.Empty() {
		addAll(set, cascadeAll)
	}
	if !diff.CodeNodes.Empty() {
		addAll(set, cascadeStructure)
	}
	if !diff.Relationships.Empty() || !diff.Dependencies.Empty() || !diff.DataFlows.Empty() {
		addAll(set, cascadeRelationship)
	}
	if !diff.Patterns.Empty() {
		addAll(set, cascadeRelationship)
	}
	if !diff.Concepts.Empty() || !diff.SemanticUnits.Empty() {
		addAll(set, cascadeSemantic)
	}
	// Cluster changes alone trigger nothing downstream; clusters are the
	// last layer.

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func addAll(set map[string]bool, ids []string) {
	for _, id := range ids {
		set[id] = true
	}
}
