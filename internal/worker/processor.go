package worker

import (
	"context"

	"github.com/cuongbtq/reqpipe/internal/queue"
)

// OutcomeKind says how a processed item should be resolved in the queue.
type OutcomeKind int

const (
	// OutcomeComplete integrates the item with a downstream result reference.
	OutcomeComplete OutcomeKind = iota
	// OutcomeReject terminally rejects the item; not counted as a retry.
	OutcomeReject
	// OutcomeFail reports a transient error; the queue decides between a
	// retry and permanent failure based on the item's retry budget.
	OutcomeFail
)

// Outcome is the result of processing one item.
type Outcome struct {
	Kind      OutcomeKind
	ResultRef string
	Reason    string
	Err       error
	Details   map[string]interface{}
}

// Processor is the opaque extraction/validation logic hosted by the worker
// runtime. Implementations interact with the orchestration core only through
// the Outcome they return; the runtime applies it via Complete/Reject/Fail.
type Processor interface {
	Process(ctx context.Context, item *queue.Requirement) Outcome
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, item *queue.Requirement) Outcome

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, item *queue.Requirement) Outcome {
	return f(ctx, item)
}
