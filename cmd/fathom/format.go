package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"fathom/internal/model"
	"fathom/internal/report"
)

// printRunSummary prints the human-readable result of one analysis run.
func printRunSummary(verb string, u *model.UnifiedUnderstanding, stats *model.AnalysisStats) {
	took := time.Duration(stats.TimeTakenMs) * time.Millisecond
	fmt.Printf("%s %d files in %s\n", verb, stats.FilesIndexed, took)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  nodes\t%d\n", stats.NodesExtracted)
	fmt.Fprintf(w, "  relationships\t%d\n", stats.RelationshipsIdentified)
	fmt.Fprintf(w, "  dependencies\t%d\n", stats.DependenciesDiscovered)
	fmt.Fprintf(w, "  patterns\t%d\n", stats.PatternsDiscovered)
	fmt.Fprintf(w, "  concepts\t%d\n", stats.ConceptsExtracted)
	fmt.Fprintf(w, "  data flows\t%d\n", stats.DataFlowsDiscovered)
	w.Flush()

	if langs := report.Languages(u); len(langs) > 0 {
		names := make([]string, 0, len(langs))
		for _, l := range langs {
			names = append(names, fmt.Sprintf("%s (%d)", l.Name, l.Files))
		}
		fmt.Printf("  languages: %s\n", strings.Join(names, ", "))
	}
}
