package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/queue"
)

// stubJobs serves canned jobs keyed by id.
type stubJobs struct {
	byID  map[string]*jobs.Job
	stale []jobs.Job
}

func (s *stubJobs) Get(_ context.Context, id string) (*jobs.Job, error) {
	job, ok := s.byID[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobs) ListStaleProcessing(_ context.Context, _ time.Time) ([]jobs.Job, error) {
	return s.stale, nil
}

// stubItems serves canned counts keyed by job id.
type stubItems struct {
	counts map[string]queue.StatusCounts
}

func (s *stubItems) CountByStatus(_ context.Context, jobID string) (queue.StatusCounts, error) {
	return s.counts[jobID], nil
}

func newTestMonitor(jobSource *stubJobs, itemSource *stubItems, jobTimeout time.Duration, now time.Time) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMonitor(jobSource, itemSource, logger, jobTimeout)
	m.now = func() time.Time { return now }
	return m
}

func TestMonitor_CheckCompletion(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		job    *jobs.Job
		counts queue.StatusCounts
		want   string
	}{
		{
			name: "failed job",
			job:  &jobs.Job{Status: jobs.StatusFailed, CreatedAt: now.Add(-time.Minute)},
			want: CompletionFailed,
		},
		{
			name: "cancelled job",
			job:  &jobs.Job{Status: jobs.StatusCancelled, CreatedAt: now.Add(-time.Minute)},
			want: CompletionFailed,
		},
		{
			name: "explicitly completed job",
			job:  &jobs.Job{Status: jobs.StatusCompleted, CreatedAt: now.Add(-time.Minute)},
			want: CompletionCompleted,
		},
		{
			name: "extraction done and all items terminal",
			job: &jobs.Job{
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineCompleted,
				CreatedAt:        now.Add(-time.Minute),
			},
			counts: queue.StatusCounts{Integrated: 3, Rejected: 1, Failed: 1},
			want:   CompletionCompleted,
		},
		{
			name: "extraction done but items still pending",
			job: &jobs.Job{
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineCompleted,
				CreatedAt:        now.Add(-time.Minute),
			},
			counts: queue.StatusCounts{Pending: 2, Integrated: 3},
			want:   CompletionInProgress,
		},
		{
			name: "extraction still running",
			job: &jobs.Job{
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineProcessing,
				CreatedAt:        now.Add(-time.Minute),
			},
			want: CompletionInProgress,
		},
		{
			name: "timed out job",
			job: &jobs.Job{
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineProcessing,
				CreatedAt:        now.Add(-3 * time.Hour),
			},
			counts: queue.StatusCounts{Pending: 2},
			want:   CompletionStuck,
		},
		{
			name: "derived completion wins over the timeout",
			job: &jobs.Job{
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineCompleted,
				CreatedAt:        now.Add(-3 * time.Hour),
			},
			counts: queue.StatusCounts{Integrated: 5},
			want:   CompletionCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.job.JobID = "job-1"
			m := newTestMonitor(
				&stubJobs{byID: map[string]*jobs.Job{"job-1": tt.job}},
				&stubItems{counts: map[string]queue.StatusCounts{"job-1": tt.counts}},
				time.Hour, now,
			)

			state, err := m.CheckCompletion(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		m := newTestMonitor(&stubJobs{byID: map[string]*jobs.Job{}}, &stubItems{}, time.Hour, now)

		_, err := m.CheckCompletion(context.Background(), "missing")
		assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	})
}

func TestMonitor_DetectStuckJobs(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	stalledAt := now.Add(-25 * time.Minute)

	jobsStub := &stubJobs{
		stale: []jobs.Job{
			{
				JobID:            "extraction-stalled",
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineProcessing,
				ValidationStatus: jobs.PipelinePending,
				UpdatedAt:        stalledAt,
			},
			{
				JobID:            "validation-stalled",
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineCompleted,
				ValidationStatus: jobs.PipelineProcessing,
				UpdatedAt:        stalledAt,
			},
			{
				JobID:            "partial-progress",
				Status:           jobs.StatusProcessing,
				ExtractionStatus: jobs.PipelineProcessing,
				ValidationStatus: jobs.PipelineProcessing,
				UpdatedAt:        stalledAt,
			},
		},
	}
	itemsStub := &stubItems{
		counts: map[string]queue.StatusCounts{
			"extraction-stalled": {},
			"validation-stalled": {Pending: 7, Integrated: 3},
			"partial-progress":   {Pending: 1, Integrated: 1},
		},
	}

	m := newTestMonitor(jobsStub, itemsStub, time.Hour, now)

	stuck, err := m.DetectStuckJobs(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 3)

	byID := make(map[string]StuckJob, len(stuck))
	for _, s := range stuck {
		byID[s.JobID] = s
	}

	assert.Equal(t, ComponentExtraction, byID["extraction-stalled"].Component)
	assert.Equal(t, 0, byID["extraction-stalled"].PendingCount)

	assert.Equal(t, ComponentValidation, byID["validation-stalled"].Component)
	assert.Equal(t, 7, byID["validation-stalled"].PendingCount)
	assert.Contains(t, byID["validation-stalled"].Reason, "7 items remain pending")

	assert.Equal(t, ComponentBoth, byID["partial-progress"].Component)

	for _, s := range stuck {
		assert.Equal(t, 25*time.Minute, s.StalledFor)
	}

	t.Run("nothing stale", func(t *testing.T) {
		m := newTestMonitor(&stubJobs{}, itemsStub, time.Hour, now)

		stuck, err := m.DetectStuckJobs(context.Background(), 10*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, stuck)
	})
}

func TestMonitor_ComputeProgress(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	created := now.Add(-10 * time.Minute)

	newMonitorWithCounts := func(counts queue.StatusCounts) *Monitor {
		return newTestMonitor(
			&stubJobs{byID: map[string]*jobs.Job{
				"job-1": {JobID: "job-1", Status: jobs.StatusProcessing, CreatedAt: created},
			}},
			&stubItems{counts: map[string]queue.StatusCounts{"job-1": counts}},
			time.Hour, now,
		)
	}

	t.Run("eta from throughput so far", func(t *testing.T) {
		// 5 resolved in 10 minutes, 5 remaining: 10 more minutes.
		m := newMonitorWithCounts(queue.StatusCounts{Pending: 4, InProgress: 1, Integrated: 4, Rejected: 1})

		p, err := m.ComputeProgress(context.Background(), "job-1")
		require.NoError(t, err)

		assert.Equal(t, "job-1", p.JobID)
		assert.InDelta(t, 50, p.ProgressPercent, 1e-9)
		assert.Equal(t, 10*time.Minute, p.Elapsed)
		require.NotNil(t, p.ETA)
		assert.Equal(t, 10*time.Minute, *p.ETA)
	})

	t.Run("no eta before the first resolution", func(t *testing.T) {
		m := newMonitorWithCounts(queue.StatusCounts{Pending: 5})

		p, err := m.ComputeProgress(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Nil(t, p.ETA)
		assert.Equal(t, float64(0), p.ProgressPercent)
	})

	t.Run("no eta once everything resolved", func(t *testing.T) {
		m := newMonitorWithCounts(queue.StatusCounts{Integrated: 5})

		p, err := m.ComputeProgress(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Nil(t, p.ETA)
		assert.InDelta(t, 100, p.ProgressPercent, 1e-9)
	})
}
