// Package main implements the engram command line interface.
// This file wires the root command, global flags, and configuration loading.
package main

import (
	"fmt"
	"os"

	"engram/internal/config"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	homeDir    string
	jsonOutput bool

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "engram - persistent memory and task orchestration for coding agents",
	Long: `engram is a local daemon that gives coding agents a persistent memory.

It records hypothesis-driven work (GHAP entries), indexes experiences, notes,
code, and commits for semantic search, assembles token-budgeted context packs,
and coordinates tasks, reviews, and git worktrees across parallel workers.

The daemon owns all state under the engram home directory. Every other
subcommand is a thin RPC client; agent hooks talk to the same endpoint.

Quick start:
  engram daemon start      # launch the daemon in the background
  engram hook install      # wire the agent hooks into Claude settings
  engram daemon status     # verify it is healthy`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(homeDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "engram home directory (default ~/.engram, or ENGRAM_HOME)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
