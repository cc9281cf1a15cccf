package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequirement_Terminal(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		terminal bool
	}{
		{name: "pending is not terminal", status: StatusPending, terminal: false},
		{name: "in_progress is not terminal", status: StatusInProgress, terminal: false},
		{name: "integrated is terminal", status: StatusIntegrated, terminal: true},
		{name: "rejected is terminal", status: StatusRejected, terminal: true},
		{name: "failed is terminal", status: StatusFailed, terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Requirement{Status: tt.status}
			assert.Equal(t, tt.terminal, item.Terminal())
		})
	}
}

func TestValidPriority(t *testing.T) {
	tests := []struct {
		priority string
		valid    bool
	}{
		{priority: PriorityHigh, valid: true},
		{priority: PriorityMedium, valid: true},
		{priority: PriorityLow, valid: true},
		{priority: "urgent", valid: false},
		{priority: "HIGH", valid: false},
		{priority: "", valid: false},
	}

	for _, tt := range tests {
		t.Run("priority "+tt.priority, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidPriority(tt.priority))
		})
	}
}

func TestStatusCounts(t *testing.T) {
	counts := StatusCounts{
		Pending:    3,
		InProgress: 2,
		Integrated: 5,
		Rejected:   1,
		Failed:     4,
	}

	assert.Equal(t, 15, counts.Total())
	assert.Equal(t, 6, counts.Processed())
	assert.Equal(t, 5, counts.Remaining())

	t.Run("zero counts", func(t *testing.T) {
		var empty StatusCounts
		assert.Equal(t, 0, empty.Total())
		assert.Equal(t, 0, empty.Processed())
		assert.Equal(t, 0, empty.Remaining())
	})

	t.Run("failed items count as resolved but not processed", func(t *testing.T) {
		c := StatusCounts{Failed: 2}
		assert.Equal(t, 0, c.Processed())
		assert.Equal(t, 0, c.Remaining())
		assert.Equal(t, 2, c.Total())
	})
}
