// Package report condenses a finished understanding into a ranked summary
// for terminals, dashboards and CI artifacts. Every section is sorted
// deterministically and capped, so two reports over the same understanding
// are byte-identical.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"fathom/internal/model"
)

// topN caps every ranked section so reports stay readable on large trees.
const topN = 10

// Report is the serializable summary of one analysis run.
type Report struct {
	GeneratedAt  time.Time  `json:"generatedAt" yaml:"generatedAt"`
	Root         string     `json:"root" yaml:"root"`
	Stats        Stats      `json:"stats" yaml:"stats"`
	Languages    []Language `json:"languages,omitempty" yaml:"languages,omitempty"`
	Patterns     []Pattern  `json:"topPatterns,omitempty" yaml:"topPatterns,omitempty"`
	Concepts     []Concept  `json:"topConcepts,omitempty" yaml:"topConcepts,omitempty"`
	Units        []Unit     `json:"topUnits,omitempty" yaml:"topUnits,omitempty"`
	Clusters     []Cluster  `json:"topClusters,omitempty" yaml:"topClusters,omitempty"`
	Dependencies DepSummary `json:"dependencies" yaml:"dependencies"`
}

// Stats mirrors model.AnalysisStats with yaml tags so both encodings keep
// the same field names.
type Stats struct {
	TimeTakenMs             int64 `json:"timeTakenMs" yaml:"timeTakenMs"`
	MemoryUsageBytes        int64 `json:"memoryUsageBytes" yaml:"memoryUsageBytes"`
	FilesIndexed            int   `json:"filesIndexed" yaml:"filesIndexed"`
	NodesExtracted          int   `json:"nodesExtracted" yaml:"nodesExtracted"`
	PatternsDiscovered      int   `json:"patternsDiscovered" yaml:"patternsDiscovered"`
	RelationshipsIdentified int   `json:"relationshipsIdentified" yaml:"relationshipsIdentified"`
	ConceptsExtracted       int   `json:"conceptsExtracted" yaml:"conceptsExtracted"`
	DataFlowsDiscovered     int   `json:"dataFlowsDiscovered" yaml:"dataFlowsDiscovered"`
	DataFlowPathsIdentified int   `json:"dataFlowPathsIdentified" yaml:"dataFlowPathsIdentified"`
	DependenciesDiscovered  int   `json:"dependenciesDiscovered" yaml:"dependenciesDiscovered"`
}

// Language is one detected language with its share of all source files.
type Language struct {
	Name      string  `json:"name" yaml:"name"`
	Files     int     `json:"files" yaml:"files"`
	TotalSize int64   `json:"totalSizeBytes" yaml:"totalSizeBytes"`
	Share     float64 `json:"share" yaml:"share"`
}

// Pattern is one recurring code pattern, ranked by importance.
type Pattern struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	Importance float64 `json:"importance" yaml:"importance"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Frequency  int     `json:"frequency" yaml:"frequency"`
}

// Concept is one domain concept, ranked by importance.
type Concept struct {
	Name       string  `json:"name" yaml:"name"`
	Importance float64 `json:"importance" yaml:"importance"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Elements   int     `json:"elements" yaml:"elements"`
}

// Unit is one semantic unit, ranked by member count.
type Unit struct {
	Name     string  `json:"name" yaml:"name"`
	Type     string  `json:"type" yaml:"type"`
	Members  int     `json:"members" yaml:"members"`
	Cohesion float64 `json:"cohesion" yaml:"cohesion"`
}

// Cluster is one similarity cluster, ranked by size. Clusters have no name
// of their own; the dominant node type and shared naming patterns describe
// them.
type Cluster struct {
	DominantType   string   `json:"dominantType,omitempty" yaml:"dominantType,omitempty"`
	Members        int      `json:"members" yaml:"members"`
	Confidence     float64  `json:"confidence" yaml:"confidence"`
	NamingPatterns []string `json:"namingPatterns,omitempty" yaml:"namingPatterns,omitempty"`
}

// DepSummary breaks dependencies down by type. Unresolved counts in-tree
// imports whose target file could not be located.
type DepSummary struct {
	Total      int            `json:"total" yaml:"total"`
	ByType     map[string]int `json:"byType,omitempty" yaml:"byType,omitempty"`
	Unresolved int            `json:"unresolved" yaml:"unresolved"`
}

// Build summarizes an understanding and the stats of the run that produced
// it. Both arguments tolerate nil; a nil understanding yields an empty
// report with only stats filled in.
func Build(u *model.UnifiedUnderstanding, stats *model.AnalysisStats) *Report {
	r := &Report{GeneratedAt: time.Now().UTC()}
	if stats != nil {
		r.Stats = statsSummary(*stats)
	}
	if u == nil {
		return r
	}
	r.Root = u.RootPath
	if stats == nil {
		r.Stats = statsSummary(u.Stats)
	}
	r.Languages = Languages(u)
	r.Patterns = TopPatterns(u, topN)
	r.Concepts = TopConcepts(u, topN)
	r.Units = TopUnits(u, topN)
	r.Clusters = TopClusters(u, topN)
	r.Dependencies = Dependencies(u)
	return r
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func statsSummary(s model.AnalysisStats) Stats {
	return Stats{
		TimeTakenMs:             s.TimeTakenMs,
		MemoryUsageBytes:        s.MemoryUsageBytes,
		FilesIndexed:            s.FilesIndexed,
		NodesExtracted:          s.NodesExtracted,
		PatternsDiscovered:      s.PatternsDiscovered,
		RelationshipsIdentified: s.RelationshipsIdentified,
		ConceptsExtracted:       s.ConceptsExtracted,
		DataFlowsDiscovered:     s.DataFlowsDiscovered,
		DataFlowPathsIdentified: s.DataFlowPathsIdentified,
		DependenciesDiscovered:  s.DependenciesDiscovered,
	}
}

// Languages lists every detected language, largest first.
func Languages(u *model.UnifiedUnderstanding) []Language {
	if u == nil || len(u.Languages) == 0 {
		return nil
	}
	total := 0
	for _, l := range u.Languages {
		total += l.FileCount
	}
	out := make([]Language, 0, len(u.Languages))
	for _, l := range u.Languages {
		share := 0.0
		if total > 0 {
			share = float64(l.FileCount) / float64(total)
		}
		out = append(out, Language{
			Name:      l.Name,
			Files:     l.FileCount,
			TotalSize: l.TotalSize,
			Share:     share,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Files != out[j].Files {
			return out[i].Files > out[j].Files
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopPatterns returns the n most important patterns; n <= 0 means all.
func TopPatterns(u *model.UnifiedUnderstanding, n int) []Pattern {
	if u == nil {
		return nil
	}
	ranked := make([]*model.CodePattern, len(u.Patterns))
	copy(ranked, u.Patterns)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].Name < ranked[j].Name
	})
	ranked = ranked[:capAt(len(ranked), n)]
	out := make([]Pattern, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, Pattern{
			Name:       p.Name,
			Type:       string(p.Type),
			Importance: p.Importance,
			Confidence: p.Confidence,
			Frequency:  p.Frequency,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TopConcepts returns the n most important concepts; n <= 0 means all.
func TopConcepts(u *model.UnifiedUnderstanding, n int) []Concept {
	if u == nil {
		return nil
	}
	ranked := make([]*model.Concept, len(u.Concepts))
	copy(ranked, u.Concepts)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Name < ranked[j].Name
	})
	ranked = ranked[:capAt(len(ranked), n)]
	out := make([]Concept, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, Concept{
			Name:       c.Name,
			Importance: c.Importance,
			Confidence: c.Confidence,
			Elements:   len(c.CodeElements),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TopUnits returns the n largest semantic units; n <= 0 means all.
func TopUnits(u *model.UnifiedUnderstanding, n int) []Unit {
	if u == nil {
		return nil
	}
	ranked := make([]*model.SemanticUnit, len(u.SemanticUnits))
	copy(ranked, u.SemanticUnits)
	sort.Slice(ranked, func(i, j int) bool {
		if len(ranked[i].CodeNodeIDs) != len(ranked[j].CodeNodeIDs) {
			return len(ranked[i].CodeNodeIDs) > len(ranked[j].CodeNodeIDs)
		}
		if ranked[i].Properties.Cohesion != ranked[j].Properties.Cohesion {
			return ranked[i].Properties.Cohesion > ranked[j].Properties.Cohesion
		}
		return ranked[i].Name < ranked[j].Name
	})
	ranked = ranked[:capAt(len(ranked), n)]
	out := make([]Unit, 0, len(ranked))
	for _, su := range ranked {
		out = append(out, Unit{
			Name:     su.Name,
			Type:     string(su.Type),
			Members:  len(su.CodeNodeIDs),
			Cohesion: su.Properties.Cohesion,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TopClusters returns the n largest clusters; n <= 0 means all.
func TopClusters(u *model.UnifiedUnderstanding, n int) []Cluster {
	if u == nil {
		return nil
	}
	ranked := make([]*model.CodeCluster, len(u.Clusters))
	copy(ranked, u.Clusters)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Size() != ranked[j].Size() {
			return ranked[i].Size() > ranked[j].Size()
		}
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].ID < ranked[j].ID
	})
	ranked = ranked[:capAt(len(ranked), n)]
	out := make([]Cluster, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, Cluster{
			DominantType:   string(c.DominantType),
			Members:        c.Size(),
			Confidence:     c.Confidence,
			NamingPatterns: c.NamingPatterns,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Dependencies breaks the dependency list down by type.
func Dependencies(u *model.UnifiedUnderstanding) DepSummary {
	if u == nil {
		return DepSummary{}
	}
	sum := DepSummary{Total: len(u.Dependencies)}
	if len(u.Dependencies) == 0 {
		return sum
	}
	sum.ByType = make(map[string]int)
	for _, d := range u.Dependencies {
		sum.ByType[string(d.Type)]++
		if d.ResolvedPath != "" {
			continue
		}
		if d.Type == model.DepLocalFile || d.Type == model.DepInternalModule {
			sum.Unresolved++
		}
	}
	return sum
}

// capAt bounds a ranked section at n entries; n <= 0 means unbounded.
func capAt(have, n int) int {
	if n <= 0 || have < n {
		return have
	}
	return n
}
