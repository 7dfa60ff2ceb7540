/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
}

var rootCmd = &cobra.Command{
	Use:          "pgagent",
	SilenceUsage: true,
	Short:        "Analyze, compare, and autonomously repair PostgreSQL query plans",
	Long: `pgagent analyzes and compares PostgreSQL EXPLAIN plans, and can drive an
autonomous optimization loop against a benchmark of query-repair tasks.

It provides actionable optimization insights without requiring a browser.
Supports SQL, and JSON input formats.`,
	Example: `  # Analyze a single query
  pgagent analyze query.sql

  # Compare two plans
  pgagent compare old.sql new.sql

  # Run the optimization agent over a task file
  pgagent run --tasks tasks.jsonl --profile prod

  # Setup connection profiles
  pgagent init`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
