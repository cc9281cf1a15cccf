package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/reqpipe/internal/queue"
	"github.com/cuongbtq/reqpipe/internal/worker"
)

// simulatedProcessor stands in for the real validation pipeline so the
// runtime can be exercised end to end. It integrates relevant items with a
// synthetic graph reference and rejects the rest.
type simulatedProcessor struct {
	logger *slog.Logger
}

func newSimulatedProcessor(logger *slog.Logger) worker.Processor {
	return &simulatedProcessor{logger: logger}
}

func (p *simulatedProcessor) Process(ctx context.Context, item *queue.Requirement) worker.Outcome {
	p.logger.Info("Simulating item validation",
		slog.String("requirement_id", item.RequirementID),
		slog.Float64("confidence", item.Confidence),
	)

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return worker.Outcome{
			Kind: worker.OutcomeFail,
			Err:  fmt.Errorf("validation canceled: %w", ctx.Err()),
		}
	}

	if !item.Relevant {
		return worker.Outcome{
			Kind:   worker.OutcomeReject,
			Reason: "requirement marked not relevant",
		}
	}

	return worker.Outcome{
		Kind:      worker.OutcomeComplete,
		ResultRef: "graph://nodes/" + uuid.New().String(),
		Details: map[string]interface{}{
			"validated_by": "simulated",
		},
	}
}
