package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent processing runs from the BigQuery run log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runLog, err := newRunLog(ctx, cfg)
		if err != nil {
			return err
		}
		defer runLog.Close()

		runs, err := runLog.ListRecentRuns(ctx, runsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tMETHOD\tSOURCE\tTXNS\tUNRESOLVED\tFAILURE")
		for _, r := range runs {
			source := nullString(r.SourceURI)
			if source == "" {
				source = nullString(r.Filename)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ParsingRunID,
				r.StartedTS.Format(time.RFC3339),
				r.Status,
				nullString(r.ExtractionMethod),
				source,
				nullInt(r.Transactions),
				nullInt(r.UnresolvedRows),
				nullString(r.FailureKind),
			)
		}
		return w.Flush()
	},
}

var initBigQueryCmd = &cobra.Command{
	Use:   "init-bigquery",
	Short: "Create the run-log dataset and tables if they do not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runLog, err := newRunLog(ctx, cfg)
		if err != nil {
			return err
		}
		defer runLog.Close()

		if err := runLog.EnsureTables(ctx); err != nil {
			return err
		}
		log := logger.New()
		log.Info().Str("project", cfg.BigQuery.ProjectID).Str("dataset", cfg.BigQuery.Dataset).Msg("Run-log tables ready")
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to list")
	rootCmd.AddCommand(runsCmd, initBigQueryCmd)
}

func nullString(s bigquery.NullString) string {
	if !s.Valid {
		return "-"
	}
	return s.StringVal
}

func nullInt(n bigquery.NullInt64) string {
	if !n.Valid {
		return "-"
	}
	return fmt.Sprint(n.Int64)
}
