package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dvloznov/statement-normalizer/internal/pipeline"

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []PipelineStep
	tracer  trace.Tracer
	metrics *Metrics
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, tracer: otel.Tracer(tracerName)}
}

// WithMetrics records step durations into m.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Execute runs all steps in the pipeline sequentially, one span per step.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}

		stepCtx, span := p.tracer.Start(ctx, step.Name(), trace.WithAttributes(
			attribute.String("run_id", state.RunID),
			attribute.Int("step", i+1),
		))
		start := time.Now()
		err := step.Execute(stepCtx, state)
		p.metrics.observeStep(step.Name(), time.Since(start))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		span.End()
	}
	return nil
}

// Steps holds the collaborators of the standard pipeline. Nil members
// disable the step that uses them.
type Steps struct {
	Fetcher   SourceFetcher
	Extractor TextExtractor
	Parser    ModelParser
	Recorder  RunRecorder
	Archiver  Archiver

	MaxBytes  int64
	Normalize NormalizeOptions
}

// NewStatementPipeline creates the standard 6-step pipeline.
func NewStatementPipeline(s Steps) *Pipeline {
	return NewPipeline(
		&LoadSourceStep{Fetcher: s.Fetcher, MaxBytes: s.MaxBytes},
		&ExtractTextStep{Extractor: s.Extractor},
		&ModelParseStep{Parser: s.Parser},
		&RecordModelOutputStep{Recorder: s.Recorder, Clock: s.Normalize.Clock},
		&NormalizeStep{Options: s.Normalize},
		&ArchiveStep{Archiver: s.Archiver},
	)
}
