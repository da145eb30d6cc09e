package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/google/uuid"
)

// Input is one statement to process. Text wins over URI, URI over Data.
type Input struct {
	Text     string
	Data     []byte
	Filename string
	URI      string

	// ForceModel skips the PDF text layer and sends the file to the model.
	ForceModel bool
}

// Result is the envelope returned for every processed statement.
type Result struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    *domain.Statement `json:"data"`
	Error   *Failure          `json:"error"`
	Report  *Report           `json:"report,omitempty"`

	RunID      string `json:"-"`
	ArchiveURI string `json:"-"`
}

// Deps are the processor's collaborators. Any of them may be nil.
type Deps struct {
	Fetcher   SourceFetcher
	Extractor TextExtractor
	Parser    ModelParser
	Recorder  RunRecorder
	Archiver  Archiver
	Metrics   *Metrics

	Clock func() time.Time
	NewID func() string
}

// Config holds the processing settings.
type Config struct {
	Normalize NormalizeOptions

	// MaxFileBytes defaults to DefaultMaxFileBytes.
	MaxFileBytes int64
	ModelName    string
}

// Processor runs the statement pipeline and wraps its outcome in a Result.
type Processor struct {
	pipeline  *Pipeline
	recorder  RunRecorder
	metrics   *Metrics
	clock     func() time.Time
	newID     func() string
	modelName string
}

// NewProcessor wires the standard pipeline.
func NewProcessor(cfg Config, deps Deps) *Processor {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	opts := cfg.Normalize
	opts.Clock = clock
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	p := NewStatementPipeline(Steps{
		Fetcher:   deps.Fetcher,
		Extractor: deps.Extractor,
		Parser:    deps.Parser,
		Recorder:  deps.Recorder,
		Archiver:  deps.Archiver,
		MaxBytes:  maxBytes,
		Normalize: opts,
	}).WithMetrics(deps.Metrics)

	return &Processor{
		pipeline:  p,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		clock:     clock,
		newID:     newID,
		modelName: cfg.ModelName,
	}
}

// Process runs one statement through the pipeline. It never returns an
// error: failures are reported in the Result.
func (p *Processor) Process(ctx context.Context, in Input) Result {
	state := &PipelineState{
		RunID:     p.newID(),
		Input:     in,
		StartedAt: p.clock(),
		Filename:  in.Filename,
	}

	ctx = logger.WithStr(ctx, "run_id", state.RunID)
	log := logger.FromContext(ctx)
	log.Info().Str("filename", in.Filename).Str("uri", in.URI).Msg("Processing statement")

	p.startRun(ctx, state)
	err := p.pipeline.Execute(ctx, state)
	res := p.result(state, err)
	p.finishRun(ctx, state, res, err)
	p.metrics.observeRun(res, p.clock().Sub(state.StartedAt))

	if err != nil {
		log.Error().Err(err).Str("kind", string(res.Error.Kind)).Msg("Statement processing failed")
	} else {
		log.Info().Int("accounts", len(res.Data.Accounts)).Msg("Statement processed")
	}
	return res
}

func (p *Processor) result(state *PipelineState, err error) Result {
	report := state.Report
	res := Result{RunID: state.RunID, ArchiveURI: state.ArchiveURI}
	if report.ExtractionMethod != "" {
		res.Report = &report
	}

	if err != nil {
		res.Message = "Failed to process bank statement"
		res.Error = FailureFrom(err)
		return res
	}

	st := state.Statement
	res.Success = true
	res.Data = &st
	res.Message = fmt.Sprintf("Bank statement processed successfully in %.2f seconds", st.ProcessingTime.Seconds())
	return res
}

func (p *Processor) startRun(ctx context.Context, state *PipelineState) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.StartRun(ctx, infra.RunStart{
		RunID:     state.RunID,
		SourceURI: state.Input.URI,
		Filename:  state.Filename,
		ModelName: p.modelName,
		StartedAt: state.StartedAt,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to record run start")
	}
}

func (p *Processor) finishRun(ctx context.Context, state *PipelineState, res Result, err error) {
	if p.recorder == nil {
		return
	}

	transactions, unresolved := state.Report.Counts()
	fin := infra.RunFinish{
		Status:       infra.StatusSuccess,
		FinishedAt:   p.clock(),
		Method:       state.Source,
		Transactions: transactions,
		Unresolved:   unresolved,
		Metadata: map[string]any{
			"content_type":      state.ContentType,
			"extraction_method": state.Report.ExtractionMethod,
			"date_order":        state.Report.DateOrder,
			"archive_uri":       state.ArchiveURI,
		},
	}
	if res.Data != nil {
		fin.Accounts = len(res.Data.Accounts)
	}
	if state.Model != nil {
		fin.TokensInput = state.Model.TokensInput
		fin.TokensOutput = state.Model.TokensOutput
	}
	if err != nil {
		fin.Status = infra.StatusFailed
		fin.FailureKind = string(res.Error.Kind)
		fin.Err = err
	}

	// The run is recorded even when the caller's context is already done.
	if rerr := p.recorder.FinishRun(context.WithoutCancel(ctx), state.RunID, fin); rerr != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(rerr).Msg("Failed to record run finish")
	}
}
