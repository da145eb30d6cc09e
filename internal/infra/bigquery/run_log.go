package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	parsingRunsTable  = "parsing_runs"
	modelOutputsTable = "model_outputs"

	maxErrorLen = 2000
)

// Config locates the run-log dataset.
type Config struct {
	ProjectID       string
	Dataset         string
	CredentialsFile string
}

// RunLog records parsing runs and raw model outputs in BigQuery.
type RunLog struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRunLog creates a RunLog with its own BigQuery client.
func NewRunLog(ctx context.Context, cfg Config) (*RunLog, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("NewRunLog: project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewRunLog: bigquery client: %w", err)
	}
	return NewRunLogWithClient(client, cfg.Dataset), nil
}

// NewRunLogWithClient wraps an existing client.
func NewRunLogWithClient(client *bigquery.Client, dataset string) *RunLog {
	if dataset == "" {
		dataset = "statements"
	}
	return &RunLog{client: client, project: client.Project(), dataset: dataset}
}

// Close closes the BigQuery client connection.
func (l *RunLog) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

func (l *RunLog) table(name string) string {
	return tableRef(l.project, l.dataset, name)
}

func tableRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

// StartRun inserts a parsing_runs row with status=RUNNING.
func (l *RunLog) StartRun(ctx context.Context, run RunStart) error {
	q := l.client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			parsing_run_id,
			source_uri,
			filename,
			content_type,
			model_name,
			started_ts,
			status
		)
		VALUES (
			@parsing_run_id,
			@source_uri,
			@filename,
			@content_type,
			@model_name,
			@started_ts,
			@status
		)
	`, l.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: run.RunID},
		{Name: "source_uri", Value: nullString(run.SourceURI)},
		{Name: "filename", Value: nullString(run.Filename)},
		{Name: "content_type", Value: nullString(run.ContentType)},
		{Name: "model_name", Value: nullString(run.ModelName)},
		{Name: "started_ts", Value: run.StartedAt},
		{Name: "status", Value: StatusRunning},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

// RecordModelOutput inserts a raw model reply into model_outputs. Replies
// that are not valid JSON are kept as text with a note.
func (l *RunLog) RecordModelOutput(ctx context.Context, rec ModelRecord) error {
	row := modelOutputRow(rec)

	// DML INSERT rather than streaming so rows are immediately queryable.
	q := l.client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			output_id, parsing_run_id, model_name,
			raw_json, extracted_text, created_ts, notes
		)
		VALUES (
			@output_id, @parsing_run_id, @model_name,
			@raw_json, @extracted_text, @created_ts, @notes
		)
	`, l.table(modelOutputsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_json", Value: row.RawJSON},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "notes", Value: row.Notes},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("RecordModelOutput: %w", err)
	}
	return nil
}

func modelOutputRow(rec ModelRecord) ModelOutputRow {
	row := ModelOutputRow{
		OutputID:      uuid.NewString(),
		ParsingRunID:  rec.RunID,
		ModelName:     rec.ModelName,
		ExtractedText: nullString(rec.ExtractedText),
		CreatedTS:     rec.CreatedAt,
	}
	if json.Valid([]byte(rec.Raw)) {
		row.RawJSON = bigquery.NullJSON{JSONVal: rec.Raw, Valid: true}
	} else {
		row.Notes = nullString("model reply was not valid JSON")
		if !row.ExtractedText.Valid {
			row.ExtractedText = nullString(rec.Raw)
		}
	}
	return row
}

// FinishRun sets the final status, counts and error of a run.
func (l *RunLog) FinishRun(ctx context.Context, runID string, fin RunFinish) error {
	metadata, err := nullJSON(fin.Metadata)
	if err != nil {
		return fmt.Errorf("FinishRun: encoding metadata: %w", err)
	}

	q := l.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    failure_kind = @failure_kind,
		    error_message = @error_message,
		    extraction_method = @extraction_method,
		    accounts = @accounts,
		    transactions = @transactions,
		    unresolved_rows = @unresolved_rows,
		    tokens_input = @tokens_input,
		    tokens_output = @tokens_output,
		    metadata = @metadata
		WHERE parsing_run_id = @parsing_run_id
	`, l.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: fin.Status},
		{Name: "finished_ts", Value: fin.FinishedAt},
		{Name: "failure_kind", Value: nullString(fin.FailureKind)},
		{Name: "error_message", Value: nullString(truncateError(fin.Err))},
		{Name: "extraction_method", Value: nullString(fin.Method)},
		{Name: "accounts", Value: bigquery.NullInt64{Int64: int64(fin.Accounts), Valid: true}},
		{Name: "transactions", Value: bigquery.NullInt64{Int64: int64(fin.Transactions), Valid: true}},
		{Name: "unresolved_rows", Value: bigquery.NullInt64{Int64: int64(fin.Unresolved), Valid: true}},
		{Name: "tokens_input", Value: nullInt(fin.TokensInput)},
		{Name: "tokens_output", Value: nullInt(fin.TokensOutput)},
		{Name: "metadata", Value: metadata},
		{Name: "parsing_run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("parsing_run_id", runID).
			Msg("FinishRun: update failed")
		return fmt.Errorf("FinishRun: %w", err)
	}
	return nil
}

// ListRecentRuns returns the newest runs first.
func (l *RunLog) ListRecentRuns(ctx context.Context, limit int) ([]*ParsingRunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := l.client.Query(fmt.Sprintf(`
		SELECT
			parsing_run_id,
			source_uri,
			filename,
			content_type,
			started_ts,
			finished_ts,
			extraction_method,
			model_name,
			status,
			failure_kind,
			error_message,
			accounts,
			transactions,
			unresolved_rows,
			tokens_input,
			tokens_output,
			metadata
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, l.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: reading query: %w", err)
	}

	var runs []*ParsingRunRow
	for {
		var row ParsingRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

// EnsureTables creates the dataset and run-log tables if they do not exist.
func (l *RunLog) EnsureTables(ctx context.Context) error {
	for _, stmt := range schemaStatements(l.project, l.dataset) {
		if err := runQuery(ctx, l.client.Query(stmt)); err != nil {
			return fmt.Errorf("EnsureTables: %w", err)
		}
	}
	return nil
}

func schemaStatements(project, dataset string) []string {
	return []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS `%s.%s`", project, dataset),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			parsing_run_id    STRING NOT NULL,
			source_uri        STRING,
			filename          STRING,
			content_type      STRING,
			started_ts        TIMESTAMP NOT NULL,
			finished_ts       TIMESTAMP,
			extraction_method STRING,
			model_name        STRING,
			status            STRING NOT NULL,
			failure_kind      STRING,
			error_message     STRING,
			accounts          INT64,
			transactions      INT64,
			unresolved_rows   INT64,
			tokens_input      INT64,
			tokens_output     INT64,
			metadata          JSON
		)`, tableRef(project, dataset, parsingRunsTable)),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			output_id      STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			model_name     STRING NOT NULL,
			raw_json       JSON,
			extracted_text STRING,
			created_ts     TIMESTAMP NOT NULL,
			notes          STRING
		)`, tableRef(project, dataset, modelOutputsTable)),
	}
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullInt(n int64) bigquery.NullInt64 {
	return bigquery.NullInt64{Int64: n, Valid: n != 0}
}

func nullJSON(v map[string]any) (bigquery.NullJSON, error) {
	if len(v) == 0 {
		return bigquery.NullJSON{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}, err
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}, nil
}
