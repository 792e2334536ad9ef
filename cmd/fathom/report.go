package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fathom/internal/report"
	"fathom/internal/snapshot"
)

var (
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the current snapshot as a YAML or JSON summary",
	Long: `Builds a ranked summary of the last snapshot: languages, top patterns,
concepts, units and clusters, and a dependency breakdown.

Examples:
  fathom report
  fathom report --format json
  fathom report --out fathom-report.yaml`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "yaml", "Output format (yaml, json)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	switch reportFormat {
	case "yaml", "json":
	default:
		return usagef("unsupported format %q (yaml, json)", reportFormat)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	u, err := rt.service.Load()
	if errors.Is(err, snapshot.ErrNotFound) {
		return fmt.Errorf("no snapshot found; run 'fathom analyze' first")
	}
	if err != nil {
		return err
	}

	rep := report.Build(u, &u.Stats)

	if reportOut == "" {
		return writeReport(rep, os.Stdout)
	}

	var buf bytes.Buffer
	if err := writeReport(rep, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(reportOut, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	fmt.Printf("Report written to %s\n", reportOut)
	return nil
}

func writeReport(rep *report.Report, w io.Writer) error {
	if reportFormat == "json" {
		return rep.WriteJSON(w)
	}
	return rep.WriteYAML(w)
}
