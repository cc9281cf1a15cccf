package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/reqpipe/internal/queue"
	"github.com/cuongbtq/reqpipe/shared/rabbitmq"
)

// Config holds worker runtime configuration.
type Config struct {
	Logger            *slog.Logger
	Queue             *queue.Queue
	Registry          *Registry
	Processor         Processor
	RabbitClient      *rabbitmq.Client // optional: wake hints between polls
	Role              string
	JobID             string // optional: restrict claims to one job
	Concurrency       int
	PollInterval      time.Duration
	ItemTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// Worker hosts N processing goroutines that pull-poll the queue on their own
// cadence. Exclusivity comes entirely from the queue's atomic claim; the
// runtime adds only backoff between empty polls and liveness heartbeats.
type Worker struct {
	logger            *slog.Logger
	queue             *queue.Queue
	registry          *Registry
	processor         Processor
	rabbitClient      *rabbitmq.Client
	workerID          string
	role              string
	jobID             string
	concurrency       int
	pollInterval      time.Duration
	itemTimeout       time.Duration
	heartbeatInterval time.Duration

	wakeChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a worker runtime instance.
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		queue:             cfg.Queue,
		registry:          cfg.Registry,
		processor:         cfg.Processor,
		rabbitClient:      cfg.RabbitClient,
		workerID:          fmt.Sprintf("%s-%s", cfg.Role, uuid.New().String()[:8]),
		role:              cfg.Role,
		jobID:             cfg.JobID,
		concurrency:       concurrency,
		pollInterval:      pollInterval,
		itemTimeout:       cfg.ItemTimeout,
		heartbeatInterval: heartbeatInterval,
		wakeChan:          make(chan struct{}, 1),
		stopChan:          make(chan struct{}),
	}
}

// WorkerID returns the generated worker identity.
func (w *Worker) WorkerID() string {
	return w.workerID
}

// Start registers the worker, spawns the processing pool, and blocks until
// the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("role", w.role),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	if err := w.registry.Register(ctx, w.workerID, w.role); err != nil {
		return err
	}

	if w.rabbitClient != nil {
		if err := w.startWakeListener(ctx); err != nil {
			w.logger.Warn("Wake listener unavailable, falling back to polling only",
				slog.String("error", err.Error()),
			)
		}
	}

	w.wg.Add(1)
	go w.heartbeatLoop(ctx)

	w.spawnPool(ctx)

	if err := w.registry.Heartbeat(ctx, w.workerID, StatusReady, ""); err != nil {
		w.logger.Warn("Failed to report ready status",
			slog.String("error", err.Error()),
		)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker and marks it offline.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.registry.MarkOffline(ctx, w.workerID); err != nil {
		w.logger.Warn("Failed to mark worker offline",
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}

// heartbeatLoop refreshes the worker row so monitors can tell a live idle
// worker from a dead one.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.registry.Heartbeat(ctx, w.workerID, StatusReady, ""); err != nil {
				w.logger.Warn("Failed to update worker heartbeat",
					slog.String("worker_id", w.workerID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
