package pipeline

import (
	"context"
	"sync"

	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
)

type mockParser struct {
	ParseFunc func(ctx context.Context, req ModelRequest) (ModelResponse, error)
	requests  []ModelRequest
}

func (m *mockParser) Parse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	m.requests = append(m.requests, req)
	return m.ParseFunc(ctx, req)
}

type mockExtractor struct {
	ExtractFunc func(ctx context.Context, pdf []byte) ([]string, error)
}

func (m *mockExtractor) Extract(ctx context.Context, pdf []byte) ([]string, error) {
	return m.ExtractFunc(ctx, pdf)
}

type mockFetcher struct {
	FetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, runID, name string, data []byte) (string, error)
}

func (m *mockArchiver) Archive(ctx context.Context, runID, name string, data []byte) (string, error) {
	return m.ArchiveFunc(ctx, runID, name, data)
}

type mockRecorder struct {
	mu       sync.Mutex
	starts   []infra.RunStart
	outputs  []infra.ModelRecord
	finishes []infra.RunFinish

	StartErr error
}

func (m *mockRecorder) StartRun(ctx context.Context, run infra.RunStart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, run)
	return m.StartErr
}

func (m *mockRecorder) RecordModelOutput(ctx context.Context, rec infra.ModelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, rec)
	return nil
}

func (m *mockRecorder) FinishRun(ctx context.Context, runID string, fin infra.RunFinish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes = append(m.finishes, fin)
	return nil
}
