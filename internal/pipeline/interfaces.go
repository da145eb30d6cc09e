package pipeline

import (
	"context"

	"github.com/dvloznov/statement-normalizer/internal/extraction"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
)

// ModelRequest is what the model parser receives: the PDF itself, or page
// text already extracted from it.
type ModelRequest struct {
	PDF      []byte
	Pages    []string
	Filename string
}

// ModelResponse is the model's reply, decoded and raw.
type ModelResponse struct {
	Output extraction.ModelOutput
	Raw    string
	Model  string

	TokensInput  int64
	TokensOutput int64
}

// ModelParser provides an interface for AI-powered document parsing operations.
// This interface enables mocking and testing of AI parsing functionality.
type ModelParser interface {
	Parse(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// TextExtractor reads the text layer of a PDF, one string per page.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) ([]string, error)
}

// SourceFetcher downloads statement files by URI.
type SourceFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Archiver stores a processed result and returns where it was written.
// runID keeps results of the same file name apart.
type Archiver interface {
	Archive(ctx context.Context, runID, name string, data []byte) (string, error)
}

// RunRecorder keeps an audit log of processing runs.
type RunRecorder interface {
	StartRun(ctx context.Context, run infra.RunStart) error
	RecordModelOutput(ctx context.Context, rec infra.ModelRecord) error
	FinishRun(ctx context.Context, runID string, fin infra.RunFinish) error
}
