package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information and the configured integrations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "statement-normalizer")
		fmt.Fprintf(out, "Version:     %s\n", Version)
		fmt.Fprintf(out, "Build Date:  %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version:  %s\n", runtime.Version())

		model := "disabled"
		if cfg.ModelEnabled() {
			key := "GOOGLE_API_KEY from environment"
			if cfg.Model.APIKey != "" {
				key = "api key configured"
			}
			model = fmt.Sprintf("%s %s (%s, %s)", cfg.Model.Provider, cfg.Model.Name, cfg.Model.APIVersion, key)
		}
		fmt.Fprintf(out, "Model:       %s\n", model)

		runLog := "disabled"
		if cfg.BigQuery.Enabled {
			runLog = fmt.Sprintf("bigquery %s.%s", cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		}
		fmt.Fprintf(out, "Run log:     %s\n", runLog)

		archive := "disabled"
		if cfg.Storage.ArchiveBucket != "" {
			archive = fmt.Sprintf("gs://%s/%s", cfg.Storage.ArchiveBucket, cfg.Storage.ArchivePrefix)
		}
		fmt.Fprintf(out, "Archive:     %s\n", archive)
		fmt.Fprintln(out, "PDF text:    available")
		fmt.Fprintf(out, "Currency:    %s (fallback), dates %s\n", cfg.Processing.FallbackCurrency, cfg.Processing.DateOrder)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
