package jobs

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyDescription is returned by Create when the description is blank.
	ErrEmptyDescription = errors.New("job description must not be empty")

	// ErrMissingDocument is returned by Create when the document reference
	// points at a local file that does not exist.
	ErrMissingDocument = errors.New("document reference is unreachable")

	// ErrInvalidStatus is returned when a status string is not a known value.
	ErrInvalidStatus = errors.New("invalid status")
)
