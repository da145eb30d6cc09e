package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/gcs"
	"github.com/dvloznov/statement-normalizer/internal/jobs"
	"github.com/dvloznov/statement-normalizer/internal/jobs/inmemory"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	batchOutDir      string
	batchMetricsFile string
	batchForceModel  bool
	batchTimeout     time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <file|gs://uri>...",
	Short: "Process many statements concurrently",
	Long: `Queues every input as a job and processes them with worker.count
workers. Jobs that fail for transient reasons (model or storage outages) are
retried up to worker.max_retries times.

With --out-dir each result envelope is written as <input name>.json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Directory for per-input JSON results")
	batchCmd.Flags().StringVar(&batchMetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	batchCmd.Flags().BoolVar(&batchForceModel, "force-model", false, "Send PDFs to the model even if they have a text layer")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "Give up on unfinished jobs after this long")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchOutDir != "" {
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", batchOutDir, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	a, err := newApp(ctx, cfg, pipeline.NewMetrics(registry))
	if err != nil {
		return err
	}
	defer a.Close()
	ctx = logger.WithContext(ctx, a.log)

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Options{
		BufferSize: cfg.Worker.QueueSize,
		Workers:    cfg.Worker.Count,
		MaxRetries: cfg.Worker.MaxRetries,
	}, store)
	defer queue.Close()

	if err := queue.Start(ctx, statementHandler(a.processor)); err != nil {
		return err
	}

	a.log.Info().Int("inputs", len(args)).Int("workers", cfg.Worker.Count).Msg("Starting batch")
	for _, src := range args {
		job := &jobs.ProcessStatementJob{Source: src, ForceModel: batchForceModel}
		if err := queue.PublishProcessStatement(ctx, job); err != nil {
			return fmt.Errorf("queue %s: %w", src, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	if err := queue.Wait(waitCtx); err != nil {
		a.log.Error().Err(err).Msg("Batch did not finish")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		a.log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	done, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	if err != nil {
		return err
	}
	for _, job := range done {
		if err := writeJobOutput(batchOutDir, job); err != nil {
			a.log.Error().Err(err).Str("source", job.Source).Msg("Failed to write result")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s %s\n", job.Status, job.Source, job.Error)
	}

	if batchMetricsFile != "" {
		if err := prometheus.WriteToTextfile(batchMetricsFile, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	sum := store.Summary(context.Background())
	a.log.Info().Int("jobs", sum.Total).Int("failed", sum.Failed()).Int("retries", sum.Retries).Msg("Batch finished")
	if unfinished := sum.Total - sum.ByStatus[jobs.JobStatusCompleted] - sum.Failed(); unfinished > 0 {
		return fmt.Errorf("%d of %d statements did not finish", unfinished, sum.Total)
	}
	if sum.Failed() > 0 {
		return fmt.Errorf("%d of %d statements failed", sum.Failed(), sum.Total)
	}
	return nil
}

// statementHandler processes one queued statement and stores its result
// envelope on the job.
func statementHandler(p *pipeline.Processor) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.ProcessStatementJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		in := pipeline.Input{ForceModel: j.ForceModel}
		if strings.HasPrefix(j.Source, "gs://") {
			in.URI = j.Source
			in.Filename = gcs.FilenameFromURI(j.Source)
		} else {
			data, err := os.ReadFile(j.Source)
			if err != nil {
				return jobs.Permanent(fmt.Errorf("read %s: %w", j.Source, err))
			}
			in.Data = data
			in.Filename = filepath.Base(j.Source)
		}

		res := p.Process(ctx, in)
		out, err := json.Marshal(res)
		if err != nil {
			return jobs.Permanent(err)
		}
		j.Output = out
		j.RunID = res.RunID

		if res.Success {
			return nil
		}
		err = processFailed(res)
		if retryable(res.Error) {
			return err
		}
		return jobs.Permanent(err)
	}
}

// retryable reports whether a failure may succeed on another attempt.
func retryable(f *pipeline.Failure) bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case pipeline.KindModelUnavailable, pipeline.KindSourceUnavailable, pipeline.KindInternal:
		return true
	}
	return false
}

// writeJobOutput writes the job's result envelope to dir as
// <source name>-<job id>.json.
func writeJobOutput(dir string, job *jobs.ProcessStatementJob) error {
	if dir == "" || len(job.Output) == 0 {
		return nil
	}
	name := filepath.Base(job.Source)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + "-" + job.JobID + ".json"

	var buf bytes.Buffer
	if err := json.Indent(&buf, job.Output, "", "  "); err != nil {
		return fmt.Errorf("format %s: %w", name, err)
	}
	buf.WriteByte('\n')
	return os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644)
}
