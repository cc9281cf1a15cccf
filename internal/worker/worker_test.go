package worker

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/reqpipe/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessorFunc(t *testing.T) {
	var got *queue.Requirement
	p := ProcessorFunc(func(_ context.Context, item *queue.Requirement) Outcome {
		got = item
		return Outcome{Kind: OutcomeReject, Reason: "not relevant"}
	})

	item := &queue.Requirement{RequirementID: "r1"}
	outcome := p.Process(context.Background(), item)

	assert.Same(t, item, got)
	assert.Equal(t, OutcomeReject, outcome.Kind)
	assert.Equal(t, "not relevant", outcome.Reason)
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(&Config{
		Logger: discardLogger(),
		Role:   "validator",
		Processor: ProcessorFunc(func(context.Context, *queue.Requirement) Outcome {
			return Outcome{Kind: OutcomeComplete}
		}),
	})

	assert.Equal(t, 1, w.concurrency)
	assert.Equal(t, 2*time.Second, w.pollInterval)
	assert.Equal(t, 30*time.Second, w.heartbeatInterval)

	t.Run("worker id carries the role prefix", func(t *testing.T) {
		require.True(t, strings.HasPrefix(w.WorkerID(), "validator-"))

		// The suffix is random: two workers never collide.
		other := NewWorker(&Config{Logger: discardLogger(), Role: "validator"})
		assert.NotEqual(t, w.WorkerID(), other.WorkerID())
	})
}

func TestNewWorker_ExplicitConfig(t *testing.T) {
	w := NewWorker(&Config{
		Logger:            discardLogger(),
		Role:              "extractor",
		JobID:             "job-1",
		Concurrency:       8,
		PollInterval:      500 * time.Millisecond,
		ItemTimeout:       time.Minute,
		HeartbeatInterval: 10 * time.Second,
	})

	assert.Equal(t, 8, w.concurrency)
	assert.Equal(t, 500*time.Millisecond, w.pollInterval)
	assert.Equal(t, time.Minute, w.itemTimeout)
	assert.Equal(t, 10*time.Second, w.heartbeatInterval)
	assert.Equal(t, "job-1", w.jobID)
}

func TestWaitForWork(t *testing.T) {
	newWaiting := func(pollInterval time.Duration) *Worker {
		return NewWorker(&Config{
			Logger:       discardLogger(),
			Role:         "extractor",
			PollInterval: pollInterval,
		})
	}

	t.Run("wake hint cuts the backoff short", func(t *testing.T) {
		w := newWaiting(time.Minute)
		w.wakeChan <- struct{}{}

		start := time.Now()
		w.waitForWork(context.Background())
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("stop unblocks the wait", func(t *testing.T) {
		w := newWaiting(time.Minute)
		close(w.stopChan)

		start := time.Now()
		w.waitForWork(context.Background())
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("context cancellation unblocks the wait", func(t *testing.T) {
		w := newWaiting(time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		w.waitForWork(ctx)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("poll interval elapses without hints", func(t *testing.T) {
		w := newWaiting(10 * time.Millisecond)

		start := time.Now()
		w.waitForWork(context.Background())
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})
}
