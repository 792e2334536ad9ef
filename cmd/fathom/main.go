package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 2 {
			fmt.Fprintln(os.Stderr, "Run 'fathom --help' for usage.")
		}
		os.Exit(code)
	}
}

// exitCode maps an execution error to the process exit code: 2 for bad
// usage, 1 for everything else.
func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	// cobra reports unknown subcommands as plain errors
	if strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}
