package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fathom/internal/model"
	"fathom/internal/report"
	"fathom/internal/snapshot"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show <concepts|patterns|clusters|units|languages>",
	Short: "Print one section of the current snapshot",
	Long: `Prints a ranked table from the last snapshot.

Examples:
  fathom show concepts
  fathom show patterns --limit 5
  fathom show languages`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usagef("expected one section: concepts, patterns, clusters, units or languages")
		}
		return nil
	},
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum rows (0 = all)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	section := args[0]
	switch section {
	case "concepts", "patterns", "clusters", "units", "languages":
	default:
		return usagef("unknown section %q (concepts, patterns, clusters, units, languages)", section)
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

	switch section {
	case "concepts":
		return showConcepts(u)
	case "patterns":
		return showPatterns(u)
	case "clusters":
		return showClusters(u)
	case "units":
		return showUnits(u)
	default:
		return showLanguages(u)
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func showConcepts(u *model.UnifiedUnderstanding) error {
	rows := report.TopConcepts(u, showLimit)
	if len(rows) == 0 {
		fmt.Println("No concepts in the current snapshot.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "CONCEPT\tIMPORTANCE\tCONFIDENCE\tELEMENTS")
	for _, c := range rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%d\n", c.Name, c.Importance, c.Confidence, c.Elements)
	}
	return w.Flush()
}

func showPatterns(u *model.UnifiedUnderstanding) error {
	rows := report.TopPatterns(u, showLimit)
	if len(rows) == 0 {
		fmt.Println("No patterns in the current snapshot.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "PATTERN\tTYPE\tFREQUENCY\tCONFIDENCE")
	for _, p := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", p.Name, p.Type, p.Frequency, p.Confidence)
	}
	return w.Flush()
}

func showClusters(u *model.UnifiedUnderstanding) error {
	rows := report.TopClusters(u, showLimit)
	if len(rows) == 0 {
		fmt.Println("No clusters in the current snapshot.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "TYPE\tMEMBERS\tCONFIDENCE\tNAMING")
	for _, c := range rows {
		naming := "-"
		if len(c.NamingPatterns) > 0 {
			naming = strings.Join(c.NamingPatterns, ", ")
		}
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", c.DominantType, c.Members, c.Confidence, naming)
	}
	return w.Flush()
}

func showUnits(u *model.UnifiedUnderstanding) error {
	rows := report.TopUnits(u, showLimit)
	if len(rows) == 0 {
		fmt.Println("No semantic units in the current snapshot.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "UNIT\tTYPE\tMEMBERS\tCOHESION")
	for _, su := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", su.Name, su.Type, su.Members, su.Cohesion)
	}
	return w.Flush()
}

func showLanguages(u *model.UnifiedUnderstanding) error {
	rows := report.Languages(u)
	if len(rows) == 0 {
		fmt.Println("No languages in the current snapshot.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "LANGUAGE\tFILES\tSIZE\tSHARE")
	for _, l := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", l.Name, l.Files, l.TotalSize, l.Share*100)
	}
	return w.Flush()
}
