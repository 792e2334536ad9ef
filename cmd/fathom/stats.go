package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	statsLimit int
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent analysis runs",
	Long: `Lists recorded runs, newest first: when they started, whether they
were full or incremental, and what they produced.

Examples:
  fathom stats
  fathom stats --limit 3
  fathom stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "Maximum runs to list (0 = all)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Emit JSON instead of a table")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.history == nil {
		return fmt.Errorf("run history unavailable")
	}

	runs, err := rt.history.ListRuns(statsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run 'fathom analyze' first.")
		return nil
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tMODE\tFILES\tNODES\tCONCEPTS\tTOOK")
	for _, r := range runs {
		took := time.Duration(r.DurationMs) * time.Millisecond
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			r.Stats.FilesIndexed,
			r.Stats.NodesExtracted,
			r.Stats.ConceptsExtracted,
			took,
		)
	}
	return w.Flush()
}
