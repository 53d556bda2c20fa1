package queue

import "errors"

var (
	// ErrJobNotFound is returned when a job exists neither in the cache nor
	// in the repository.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownJobType is returned for job types the dispatcher has no
	// executor for.
	ErrUnknownJobType = errors.New("unknown job type")
)
