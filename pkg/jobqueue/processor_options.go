package jobqueue

import (
	"log/slog"
	"time"
)

// ProcessorOption is a functional option for configuring a Processor.
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	popTimeout   time.Duration
	jobTimeout   time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
}

// WithPopTimeout sets how long a blocking pop waits before re-checking
// for shutdown.
func WithPopTimeout(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d > 0 {
			o.popTimeout = d
		}
	}
}

// WithJobTimeout bounds the execution of a single handler so one hung
// call cannot stall the worker indefinitely.
func WithJobTimeout(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

// WithErrorBackoff sets the pause after an infrastructure failure.
func WithErrorBackoff(d time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		if d > 0 {
			o.errorBackoff = d
		}
	}
}

// WithProcessorLogger sets the logger for the processor.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
