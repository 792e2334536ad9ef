package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fathom/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a fathom workspace",
	Long:  "Creates a .fathom/ directory with the default configuration in the analysis root.",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	configPath := filepath.Join(root, ".fathom", "config.json")
	if _, statErr := os.Stat(configPath); statErr == nil && !initForce {
		// Re-running init in an initialized tree is a no-op so CI can
		// call it unconditionally.
		fmt.Println("Already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("\nRun 'fathom init --force' to reset it.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Initialized fathom workspace in %s\n", filepath.Dir(configPath))
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Adjust .fathom/config.json if needed")
	fmt.Println("  2. Run 'fathom analyze' to build the first snapshot")
	return nil
}
