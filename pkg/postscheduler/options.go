package postscheduler

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Scheduler.
type Option func(*options)

type options struct {
	sweepInterval  time.Duration
	batchSize      int
	workers        int
	publishTimeout time.Duration
	leaseTimeout   time.Duration

	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration

	logger   *slog.Logger
	notifier Notifier
}

func defaultOptions() *options {
	return &options{
		sweepInterval:  30 * time.Second,
		batchSize:      50,
		workers:        4,
		publishTimeout: 2 * time.Minute,
		leaseTimeout:   5 * time.Minute,
		maxRetries:     3,
		retryBase:      time.Minute,
		retryMax:       time.Hour,
		logger:         slog.Default(),
	}
}

// WithSweepInterval sets how often due posts are promoted.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithBatchSize caps how many due posts one sweep claims.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithWorkers sets the size of the publish worker pool.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPublishTimeout bounds a single platform publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.publishTimeout = d
		}
	}
}

// WithLeaseTimeout sets how long a claimed post stays leased before a
// sweep may reclaim it from a dead worker. It must comfortably exceed
// the publish timeout.
func WithLeaseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.leaseTimeout = d
		}
	}
}

// WithRetryPolicy sets the retry budget and the exponential backoff
// bounds applied between publish attempts.
func WithRetryPolicy(maxRetries int, base, max time.Duration) Option {
	return func(o *options) {
		if maxRetries > 0 {
			o.maxRetries = maxRetries
		}
		if base > 0 {
			o.retryBase = base
		}
		if max > 0 {
			o.retryMax = max
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier wires a lifecycle event sink.
func WithNotifier(notifier Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// Config holds post scheduler settings for the composition root.
type Config struct {
	SweepInterval  time.Duration `env:"POST_SWEEP_INTERVAL" envDefault:"30s"`
	BatchSize      int           `env:"POST_SWEEP_BATCH_SIZE" envDefault:"50"`
	Workers        int           `env:"POST_PUBLISH_WORKERS" envDefault:"4"`
	PublishTimeout time.Duration `env:"POST_PUBLISH_TIMEOUT" envDefault:"2m"`
	LeaseTimeout   time.Duration `env:"POST_LEASE_TIMEOUT" envDefault:"5m"`
	MaxRetries     int           `env:"POST_MAX_RETRIES" envDefault:"3"`
	RetryBase      time.Duration `env:"POST_RETRY_BASE" envDefault:"1m"`
	RetryMax       time.Duration `env:"POST_RETRY_MAX" envDefault:"1h"`
}
