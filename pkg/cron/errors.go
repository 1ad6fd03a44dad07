package cron

import "errors"

var (
	// ErrHandlerNil is returned when a job is created without a handler.
	ErrHandlerNil = errors.New("job handler cannot be nil")

	// ErrNoSchedule is returned when a job has neither interval nor cron expression.
	ErrNoSchedule = errors.New("job has no schedule")

	// ErrInvalidSchedule is returned for unparsable schedule definitions.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrJobExists is returned when registering a duplicate job name.
	ErrJobExists = errors.New("job already registered")

	// ErrJobNotFound is returned when operating on an unknown job name.
	ErrJobNotFound = errors.New("job not found")
)
