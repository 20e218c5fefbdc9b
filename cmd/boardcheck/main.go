package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/boardcheck/internal/version"
)

// errScenariosFailed makes run exit non-zero without repeating the report.
var errScenariosFailed = errors.New("scenarios failed")

var rootCmd = &cobra.Command{
	Use:   "boardcheck",
	Short: "Browser checks for the task board",
	Long: `boardcheck logs in to the task board and verifies that the expected
cards sit in the expected columns and sections, carrying the expected tags.

Scenarios are declared in YAML; see "boardcheck list" for the active table.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./boardcheck.yaml if present)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "boardcheck %s\n", version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
