package main

import (
	"context"
	"errors"
	"os"

	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/dvloznov/statement-normalizer/internal/gcs"
	infraBQ "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pdftext"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
	"github.com/rs/zerolog"
)

// app holds the clients shared by every statement processed in one command.
type app struct {
	log       zerolog.Logger
	processor *pipeline.Processor
	closers   []func() error
}

// newApp builds the processor and its collaborators from cfg. Cloud
// clients are only created when configured.
func newApp(ctx context.Context, cfg config.Config, metrics *pipeline.Metrics) (*app, error) {
	log, err := logger.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{log: log}
	ctx = logger.WithContext(ctx, log)

	deps := pipeline.Deps{
		Extractor: pdftext.New(),
		Metrics:   metrics,
	}

	gcsClient, err := gcs.NewClient(ctx, gcs.Config{
		CredentialsFile: cfg.Storage.CredentialsFile,
		ArchiveBucket:   cfg.Storage.ArchiveBucket,
		ArchivePrefix:   cfg.Storage.ArchivePrefix,
		MaxBytes:        cfg.MaxFileBytes(),
	})
	if err != nil {
		// Local files and text still work without storage credentials.
		log.Warn().Err(err).Msg("Cloud Storage unavailable; gs:// inputs and archiving disabled")
	} else {
		a.closers = append(a.closers, gcsClient.Close)
		deps.Fetcher = gcsClient
		if cfg.Storage.ArchiveBucket != "" {
			deps.Archiver = gcsClient
		}
	}

	if cfg.ModelEnabled() {
		parser, err := pipeline.NewGeminiParser(ctx, pipeline.GeminiConfig{
			Model:      cfg.Model.Name,
			APIKey:     cfg.Model.APIKey,
			APIVersion: cfg.Model.APIVersion,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Model client unavailable; only text-layer extraction will run")
		} else {
			deps.Parser = parser
		}
	}

	if cfg.BigQuery.Enabled {
		runLog, err := newRunLog(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, runLog.Close)
		deps.Recorder = runLog
	}

	a.processor = pipeline.NewProcessor(pipeline.Config{
		Normalize:    normalizeOptions(cfg),
		MaxFileBytes: cfg.MaxFileBytes(),
		ModelName:    cfg.Model.Name,
	}, deps)
	return a, nil
}

func normalizeOptions(cfg config.Config) pipeline.NormalizeOptions {
	return pipeline.NormalizeOptions{
		FallbackCurrency:    cfg.Processing.FallbackCurrency,
		ToleranceMinorUnits: cfg.Processing.ToleranceMinorUnits,
		StrictBalances:      cfg.Processing.StrictBalances,
		DateOrder:           cfg.DateOrder(),
	}
}

func newRunLog(ctx context.Context, cfg config.Config) (*infraBQ.RunLog, error) {
	if !cfg.BigQuery.Enabled {
		return nil, errors.New("bigquery is disabled; set bigquery.enabled and bigquery.project_id")
	}
	return infraBQ.NewRunLog(ctx, infraBQ.Config{
		ProjectID:       cfg.BigQuery.ProjectID,
		Dataset:         cfg.BigQuery.Dataset,
		CredentialsFile: cfg.Storage.CredentialsFile,
	})
}

// Close releases the app's clients.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
