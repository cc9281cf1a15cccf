package queue

import "errors"

var (
	// ErrItemNotFound is returned when an item id does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrNotInProgress is returned when Complete/Reject/Fail targets an item
	// that is not currently claimed, guarding double-completion.
	ErrNotInProgress = errors.New("item is not in_progress")

	// ErrInvalidPriority is returned when inserting an item with an unknown
	// priority level.
	ErrInvalidPriority = errors.New("invalid priority")
)
