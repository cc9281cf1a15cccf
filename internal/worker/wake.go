package worker

import (
	"context"
	"encoding/json"
	"log/slog"
)

// startWakeListener consumes job lifecycle events and turns them into
// non-blocking wake hints for the poll loops. Events are advisory only: a
// lost or duplicate hint costs at most one poll interval of latency, never
// correctness.
func (w *Worker) startWakeListener(ctx context.Context) error {
	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.logger.Info("Wake listener started",
			slog.String("worker_id", w.workerID),
		)

		for {
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					w.logger.Warn("Event delivery channel closed, polling only")
					return
				}

				var event struct {
					Event string `json:"event"`
					JobID string `json:"job_id"`
				}
				if err := json.Unmarshal(delivery.Body, &event); err != nil {
					w.logger.Debug("Ignoring malformed event",
						slog.String("body", string(delivery.Body)),
					)
					_ = delivery.Ack(false)
					continue
				}

				select {
				case w.wakeChan <- struct{}{}:
					w.logger.Debug("Wake hint delivered",
						slog.String("event", event.Event),
						slog.String("job_id", event.JobID),
					)
				default:
					// A hint is already pending; the loops will wake anyway.
				}

				_ = delivery.Ack(false)
			}
		}
	}()

	return nil
}
