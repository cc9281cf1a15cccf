package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/reqpipe/internal/queue"
)

// spawnPool spawns N processing goroutines based on the configured concurrency.
func (w *Worker) spawnPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.pollLoop(ctx, i)
	}
}

// pollLoop is the main loop for each processing goroutine: claim an item,
// process it, resolve it. An empty poll sleeps for the poll interval unless a
// wake hint arrives first; claim errors back off the same way. Acquire never
// blocks, so losing a claim race just means the next iteration gets a
// different item or none.
func (w *Worker) pollLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		default:
		}

		item, err := w.queue.Acquire(ctx, w.jobID)
		if err != nil {
			w.logger.Error("Failed to acquire item",
				slog.String("worker_name", workerName),
				slog.String("error", err.Error()),
			)
			w.waitForWork(ctx)
			continue
		}

		if item == nil {
			w.waitForWork(ctx)
			continue
		}

		w.processItem(ctx, workerName, item)
	}
}

// waitForWork sleeps until the poll interval elapses, a wake hint arrives, or
// the worker shuts down.
func (w *Worker) waitForWork(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.wakeChan:
	case <-w.stopChan:
	case <-ctx.Done():
	}
}

// processItem runs the processor on one claimed item and applies the outcome
// through the queue's conditional transitions.
func (w *Worker) processItem(ctx context.Context, workerName string, item *queue.Requirement) {
	w.logger.Info("Processing item",
		slog.String("worker_name", workerName),
		slog.String("requirement_id", item.RequirementID),
		slog.String("job_id", item.JobID),
		slog.String("priority", item.Priority),
	)

	if err := w.registry.Heartbeat(ctx, w.workerID, StatusWorking, item.JobID); err != nil {
		w.logger.Warn("Failed to report working status",
			slog.String("error", err.Error()),
		)
	}

	itemCtx := ctx
	if w.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, w.itemTimeout)
		defer cancel()
	}

	outcome := w.processor.Process(itemCtx, item)

	var err error
	switch outcome.Kind {
	case OutcomeComplete:
		err = w.queue.Complete(ctx, item.RequirementID, outcome.ResultRef, outcome.Details)
	case OutcomeReject:
		err = w.queue.Reject(ctx, item.RequirementID, outcome.Reason, outcome.Details)
	case OutcomeFail:
		message := "processing failed"
		if outcome.Err != nil {
			message = outcome.Err.Error()
		}
		err = w.queue.Fail(ctx, item.RequirementID, message)
	default:
		err = fmt.Errorf("unknown outcome kind %d", outcome.Kind)
	}

	if err != nil {
		// A stale-released item reclaimed by someone else shows up here as
		// ErrNotInProgress; the other claim owns it now.
		if errors.Is(err, queue.ErrNotInProgress) {
			w.logger.Warn("Item no longer owned by this worker",
				slog.String("worker_name", workerName),
				slog.String("requirement_id", item.RequirementID),
			)
		} else {
			w.logger.Error("Failed to resolve item",
				slog.String("worker_name", workerName),
				slog.String("requirement_id", item.RequirementID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := w.registry.Heartbeat(ctx, w.workerID, StatusReady, ""); err != nil {
		w.logger.Warn("Failed to report ready status",
			slog.String("error", err.Error()),
		)
	}
}
