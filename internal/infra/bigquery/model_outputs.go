package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

type ModelOutputRow struct {
	OutputID     string `bigquery:"output_id"`      // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED

	ModelName string `bigquery:"model_name"` // REQUIRED

	RawJSON       bigquery.NullJSON   `bigquery:"raw_json"`       // NULLABLE
	ExtractedText bigquery.NullString `bigquery:"extracted_text"` // NULLABLE

	CreatedTS time.Time           `bigquery:"created_ts"` // REQUIRED
	Notes     bigquery.NullString `bigquery:"notes"`      // NULLABLE
}

// ModelRecord is one raw model reply kept for auditing.
type ModelRecord struct {
	RunID         string
	ModelName     string
	Raw           string
	ExtractedText string
	CreatedAt     time.Time
}
