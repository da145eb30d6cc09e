package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/extraction"
	"github.com/dvloznov/statement-normalizer/internal/gcs"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/statement"
)

// Where the page text of a run came from.
const (
	SourceText   = "text"
	SourceDirect = "direct"
	SourceModel  = "model"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeText = "text/plain"
)

// PipelineStep represents a single step in the processing pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	Input     Input
	StartedAt time.Time

	Data        []byte
	ContentType string
	Filename    string

	Pages  []string
	Source string

	// Model is set whenever the model replied, even with output that
	// could not be decoded. ModelErr holds that decode failure.
	Model    *ModelResponse
	ModelErr error

	Statement  domain.Statement
	Report     Report
	ArchiveURI string
}

// Step 1: LoadSourceStep resolves the input into page text or PDF bytes.
type LoadSourceStep struct {
	Fetcher  SourceFetcher
	MaxBytes int64
}

func (s *LoadSourceStep) Name() string { return "load_source" }

func (s *LoadSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	in := state.Input
	if state.Filename == "" {
		state.Filename = in.Filename
	}

	switch {
	case strings.TrimSpace(in.Text) != "":
		state.ContentType = contentTypeText
		state.Pages = splitPages(in.Text)
		state.Source = SourceText
		return nil
	case in.URI != "":
		if s.Fetcher == nil {
			return fail(KindSourceUnavailable, "no storage client configured for %s", in.URI)
		}
		data, err := s.Fetcher.Fetch(ctx, in.URI)
		if err != nil {
			if errors.Is(err, gcs.ErrTooLarge) {
				return &ProcessError{Kind: KindFileTooLarge, Err: err}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ProcessError{Kind: KindSourceUnavailable, Err: err}
		}
		state.Data = data
		if state.Filename == "" {
			state.Filename = gcs.FilenameFromURI(in.URI)
		}
	case len(in.Data) > 0:
		state.Data = in.Data
	default:
		return fail(KindTextEmpty, "empty input: no text, file or URI provided")
	}

	if s.MaxBytes > 0 && int64(len(state.Data)) > s.MaxBytes {
		return fail(KindFileTooLarge, "file is %d bytes, limit is %d", len(state.Data), s.MaxBytes)
	}

	state.ContentType = DetectContentType(state.Data)
	switch state.ContentType {
	case contentTypePDF:
	case contentTypeText:
		state.Pages = splitPages(string(state.Data))
		state.Source = SourceText
	default:
		return fail(KindUnsupportedFileType, "unsupported file type %s", state.ContentType)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("content_type", state.ContentType).
		Int("bytes", len(state.Data)).
		Msg("Source loaded")
	return nil
}

// DetectContentType sniffs the input. Only PDF and plain text are accepted;
// anything else is returned as sniffed.
func DetectContentType(data []byte) string {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return contentTypePDF
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// splitPages splits on form feeds, the page separator of pdftotext and
// most OCR tools.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// Step 2: ExtractTextStep reads the PDF text layer directly.
type ExtractTextStep struct {
	Extractor TextExtractor
}

func (s *ExtractTextStep) Name() string { return "extract_text" }

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.ContentType != contentTypePDF || state.Input.ForceModel || s.Extractor == nil {
		return nil
	}

	pages, err := s.Extractor.Extract(ctx, state.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Info().Err(err).Msg("No usable text layer, model required")
		return nil
	}
	state.Pages = pages
	state.Source = SourceDirect
	return nil
}

// Step 3: ModelParseStep asks the model to structure the statement.
type ModelParseStep struct {
	Parser ModelParser
}

func (s *ModelParseStep) Name() string { return "model_parse" }

func (s *ModelParseStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	if s.Parser == nil {
		if hasText(state.Pages) {
			return nil
		}
		if state.ContentType == contentTypePDF {
			return fail(KindModelUnavailable, "PDF has no usable text layer and no model is configured")
		}
		return fail(KindTextEmpty, "no text could be extracted")
	}

	req := ModelRequest{Filename: state.Filename}
	if hasText(state.Pages) {
		req.Pages = state.Pages
	} else if state.ContentType == contentTypePDF {
		req.PDF = state.Data
	} else {
		return fail(KindTextEmpty, "no text could be extracted")
	}

	resp, err := s.Parser.Parse(ctx, req)
	if resp.Raw != "" {
		state.Model = &resp
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var pe *ProcessError
		if !errors.As(err, &pe) {
			err = &ProcessError{Kind: KindModelUnavailable, Err: err}
		}
		// Failing here would skip recording the raw reply; NormalizeStep
		// reports ModelErr when there is no page text to fall back to.
		state.ModelErr = err
		log.Warn().Err(err).Bool("page_text", hasText(state.Pages)).Msg("Model parse failed")
		return nil
	}
	state.Model = &resp

	if len(req.PDF) > 0 {
		state.Source = SourceModel
	}
	log.Info().
		Str("model", resp.Model).
		Int64("tokens_input", resp.TokensInput).
		Int64("tokens_output", resp.TokensOutput).
		Msg("Model parse complete")
	return nil
}

// Step 4: RecordModelOutputStep stores the raw model reply in the run log.
type RecordModelOutputStep struct {
	Recorder RunRecorder
	Clock    func() time.Time
}

func (s *RecordModelOutputStep) Name() string { return "record_model_output" }

func (s *RecordModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Recorder == nil || state.Model == nil {
		return nil
	}
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}

	rec := infra.ModelRecord{
		RunID:         state.RunID,
		ModelName:     state.Model.Model,
		Raw:           state.Model.Raw,
		ExtractedText: strings.Join(state.Pages, "\f"),
		CreatedAt:     clock(),
	}
	if err := s.Recorder.RecordModelOutput(ctx, rec); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to record model output")
	}
	return nil
}

// Step 5: NormalizeStep builds the canonical statement.
type NormalizeStep struct {
	Options NormalizeOptions
}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	out := extraction.ModelOutput{Pages: state.Pages}
	if state.Model != nil && state.ModelErr == nil {
		out.Structured = state.Model.Output.Structured
		out.Pairs = state.Model.Output.Pairs
		if !hasText(out.Pages) {
			out.Pages = state.Model.Output.Pages
		}
	}
	if out.Empty() {
		if state.ModelErr != nil {
			return state.ModelErr
		}
		return fail(KindTextEmpty, "no text could be extracted")
	}

	opts := s.Options
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if !state.StartedAt.IsZero() {
		opts.Elapsed = opts.Clock().Sub(state.StartedAt)
	}

	st, report, err := Normalize(out, opts)
	report.Source = state.Source
	state.Report = report

	for _, d := range report.Dropped {
		log.Warn().
			Int("index", d.Index).
			Str("account_number", d.AccountNumber).
			Str("kind", d.Kind).
			Msg("Account dropped: " + d.Reason)
	}
	for _, a := range report.Accounts {
		if len(a.Unresolved) > 0 {
			log.Warn().
				Str("account_number", a.AccountNumber).
				Int("unresolved", len(a.Unresolved)).
				Msg("Rows left unresolved")
		}
	}

	if err != nil {
		if statement.IsNoValidAccounts(err) && len(report.Accounts) == 0 && out.Structured != nil {
			if problems := extraction.ValidateStructure(out.Structured); len(problems) > 0 {
				return fail(KindInvalidAIOutput, "AI model returned invalid data structure: %s", strings.Join(problems, "; "))
			}
		}
		return err
	}
	state.Statement = st

	for _, a := range st.Accounts {
		if delta := statement.ClosingDelta(a); !delta.IsZero() {
			log.Warn().
				Str("account_number", a.AccountNumber).
				Str("closing_delta", delta.String()).
				Msg("Closing balance does not match movements")
		}
	}

	transactions, unresolved := report.Counts()
	log.Info().
		Str("summary", statement.Summary(st)).
		Int("candidate_rows", report.CandidateRows).
		Int("accounts", len(st.Accounts)).
		Int("transactions", transactions).
		Int("unresolved_rows", unresolved).
		Msg("Statement normalized")
	return nil
}

// Step 6: ArchiveStep stores the statement JSON.
type ArchiveStep struct {
	Archiver Archiver
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Archiver == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	data, err := json.Marshal(state.Statement)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode statement for archive")
		return nil
	}
	uri, err := s.Archiver.Archive(ctx, state.RunID, state.Filename, data)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive statement")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}
