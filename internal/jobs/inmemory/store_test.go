package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/jobs"
)

func TestStore_ListJobsOrderedAndPaged(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b", "d"} {
		status := jobs.JobStatusCompleted
		if id == "d" {
			status = jobs.JobStatusFailed
		}
		job := &jobs.ProcessStatementJob{JobID: id, Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob(%s) error = %v", id, err)
		}
	}

	all, _ := s.ListJobs(ctx, jobs.JobFilter{})
	var ids string
	for _, j := range all {
		ids += j.JobID
	}
	if ids != "cabd" {
		t.Errorf("order = %s, want cabd", ids)
	}

	page, _ := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].JobID != "a" {
		t.Errorf("page = %+v", page)
	}

	empty, _ := s.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("expected no jobs past the end, got %d", len(empty))
	}
}

func TestStore_CopiesJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	job := &jobs.ProcessStatementJob{JobID: "x", Output: []byte(`{"a":1}`)}
	_ = s.SaveJob(ctx, job)

	job.Output[1] = 'b'
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "x")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if string(got.Output) != `{"a":1}` || got.Status != "" {
		t.Errorf("stored job changed with caller's copy: %+v", got)
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SaveJob(ctx, &jobs.ProcessStatementJob{}); err == nil {
		t.Error("expected error for job without ID")
	}
	if _, err := s.GetJob(ctx, "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "x"); err == nil {
		t.Error("expected error updating unknown job")
	}

	_ = s.SaveJob(ctx, &jobs.ProcessStatementJob{JobID: "x"})
	if err := s.UpdateJobStatus(ctx, "x", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ := s.GetJob(ctx, "x")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}
}

func TestStore_Summary(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, &jobs.ProcessStatementJob{JobID: "a", Status: jobs.JobStatusCompleted, RetryCount: 1})
	_ = s.SaveJob(ctx, &jobs.ProcessStatementJob{JobID: "b", Status: jobs.JobStatusFailed, RetryCount: 2})
	_ = s.SaveJob(ctx, &jobs.ProcessStatementJob{JobID: "c", Status: jobs.JobStatusCompleted})

	sum := s.Summary(ctx)
	if sum.Total != 3 || sum.Failed() != 1 || sum.ByStatus[jobs.JobStatusCompleted] != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Retries != 3 {
		t.Errorf("retries = %d, want 3", sum.Retries)
	}
}
