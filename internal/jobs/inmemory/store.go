package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dvloznov/statement-normalizer/internal/jobs"
)

var _ jobs.JobStore = (*Store)(nil)

// Store keeps statement jobs in a map guarded by a mutex. Jobs go in and
// come out as copies, so a handler mutating its job cannot race a reader.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessStatementJob
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ProcessStatementJob)}
}

func clone(job *jobs.ProcessStatementJob) *jobs.ProcessStatementJob {
	c := *job
	if job.Output != nil {
		c.Output = append([]byte(nil), job.Output...)
	}
	return &c
}

// SaveJob inserts or replaces a job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ProcessStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}
	s.mu.Lock()
	s.jobs[job.JobID] = clone(job)
	s.mu.Unlock()
	return nil
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}
	return clone(job), nil
}

// ListJobs returns matching jobs ordered by creation time, then ID, so a
// batch report lists inputs in the order they were queued.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	result := make([]*jobs.ProcessStatementJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status == "" || job.Status == filter.Status {
			result = append(result, clone(job))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *jobs.ProcessStatementJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.JobID < b.JobID:
			return -1
		case a.JobID > b.JobID:
			return 1
		}
		return 0
	})

	offset := max(filter.Offset, 0)
	if offset >= len(result) {
		return []*jobs.ProcessStatementJob{}, nil
	}
	result = result[offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus sets a job's status, and its error message when one is
// given.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: job not found: %s", jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

// Summary counts stored jobs by status.
func (s *Store) Summary(ctx context.Context) jobs.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := jobs.Summary{Total: len(s.jobs), ByStatus: make(map[jobs.JobStatus]int)}
	for _, job := range s.jobs {
		sum.ByStatus[job.Status]++
		sum.Retries += job.RetryCount
	}
	return sum
}
