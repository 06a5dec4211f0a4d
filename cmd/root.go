// Package cmd defines the CLI commands for the scanova executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanova",
		Short: "A website audit service with per-target deduplication.",
		Long: `scanova audits whole websites: it discovers a site's pages, runs a
Lighthouse audit against each one concurrently, and aggregates the scores
into a single comparative report. A lease per target guarantees at most one
audit runs per site at a time, and recent results are served from cache.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads SCANOVA_* environment variables)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
