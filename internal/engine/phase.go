// Package engine drives the analysis pipeline: a fixed sequence of phases, a
// registry of analyzers that contribute during the phases they care about,
// and a shared context holding the understanding under construction.
package engine

// Phase is one stage of the analysis pipeline. Phases run strictly in
// order and never re-enter.
type Phase int

const (
	PhaseInitialization Phase = iota
	PhaseDiscovery
	PhaseContentAnalysis
	PhaseRelationshipMapping
	PhasePatternDiscovery
	PhaseIntegration
	PhaseCleanup
)

var phaseNames = map[Phase]string{
	PhaseInitialization:      "initialization",
	PhaseDiscovery:           "discovery",
	PhaseContentAnalysis:     "content_analysis",
	PhaseRelationshipMapping: "relationship_mapping",
	PhasePatternDiscovery:    "pattern_discovery",
	PhaseIntegration:         "integration",
	PhaseCleanup:             "cleanup",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}
