package main

import (
	"github.com/spf13/cobra"

	"github.com/billscan/billscan/internal/api"
	"github.com/billscan/billscan/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "billscan",
	Short: "Hospital bill line-item extraction service",
	Long: `Billscan extracts structured line items from hospital bill
documents (PDF or image) using vision LLMs.

Each page is rendered and analyzed independently, with items from
earlier pages threaded into later prompts so running totals and
carry-forward rows are not double counted. Results are validated,
deduplicated, and returned per page with token usage accounting.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.billscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json or yaml",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}
