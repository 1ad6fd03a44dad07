package cron

import (
	"log/slog"
	"time"
)

// SchedulerOption is a functional option for configuring a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	tickInterval   time.Duration
	handlerTimeout time.Duration
	logger         *slog.Logger
}

// WithTickInterval sets how often the scheduler evaluates its jobs.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithHandlerTimeout bounds a single handler invocation.
func WithHandlerTimeout(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.handlerTimeout = d
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Config holds scheduler settings for the composition root.
type Config struct {
	TickInterval   time.Duration `env:"CRON_TICK_INTERVAL" envDefault:"10s"`
	HandlerTimeout time.Duration `env:"CRON_HANDLER_TIMEOUT" envDefault:"10m"`
}
