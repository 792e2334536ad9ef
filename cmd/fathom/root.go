package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fathom/internal/version"
)

var (
	rootVerbosity int
	rootQuiet     bool
	rootDir       string
)

var rootCmd = &cobra.Command{
	Use:   "fathom",
	Short: "Fathom - zero-assumption code understanding",
	Long: `Fathom reads an unfamiliar codebase from nothing but the bytes on disk
and builds a unified understanding of it: languages, structure, imports,
data flow, recurring patterns, domain concepts and similarity clusters.
No build step, no language servers, no assumptions about frameworks.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("fathom version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&rootVerbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress all log output")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Root directory to analyze")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
}

// usageError marks errors that exit with code 2 instead of 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}
