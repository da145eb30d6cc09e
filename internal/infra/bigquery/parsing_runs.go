package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses stored in parsing_runs.status.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type ParsingRunRow struct {
	ParsingRunID string              `bigquery:"parsing_run_id"` // REQUIRED
	SourceURI    bigquery.NullString `bigquery:"source_uri"`     // NULLABLE
	Filename     bigquery.NullString `bigquery:"filename"`       // NULLABLE
	ContentType  bigquery.NullString `bigquery:"content_type"`   // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	ExtractionMethod bigquery.NullString `bigquery:"extraction_method"` // NULLABLE
	ModelName        bigquery.NullString `bigquery:"model_name"`        // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	FailureKind  bigquery.NullString `bigquery:"failure_kind"`  // NULLABLE
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	Accounts       bigquery.NullInt64 `bigquery:"accounts"`        // NULLABLE
	Transactions   bigquery.NullInt64 `bigquery:"transactions"`    // NULLABLE
	UnresolvedRows bigquery.NullInt64 `bigquery:"unresolved_rows"` // NULLABLE

	TokensInput  bigquery.NullInt64 `bigquery:"tokens_input"`  // NULLABLE
	TokensOutput bigquery.NullInt64 `bigquery:"tokens_output"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}

// RunStart describes a run when it begins.
type RunStart struct {
	RunID       string
	SourceURI   string
	Filename    string
	ContentType string
	ModelName   string
	StartedAt   time.Time
}

// RunFinish is the outcome of a run.
type RunFinish struct {
	Status       string
	FinishedAt   time.Time
	FailureKind  string
	Err          error
	Method       string
	Accounts     int
	Transactions int
	Unresolved   int
	TokensInput  int64
	TokensOutput int64
	Metadata     map[string]any
}
