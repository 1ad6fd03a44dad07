package jobqueue

import "errors"

var (
	// ErrQueueNil is returned when a nil queue is provided.
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrInvalidKind is returned for a kind outside the closed set.
	ErrInvalidKind = errors.New("invalid job kind")

	// ErrHandlerNil is returned when registering a nil handler.
	ErrHandlerNil = errors.New("handler cannot be nil")

	// ErrHandlerRegistered is returned on duplicate handler registration.
	ErrHandlerRegistered = errors.New("handler already registered for kind")

	// ErrNoHandlers is returned when the processor starts with an empty registry.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrJobNotFound is returned when no status record exists for a job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrMalformedEntry is returned when a popped entry cannot be decoded.
	// The entry is already off the queue and cannot be retried.
	ErrMalformedEntry = errors.New("malformed queue entry")
)
