package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	robfig "github.com/robfig/cron/v3"
)

// HandlerFunc is a recurring job body. It must respect ctx cancellation;
// the scheduler bounds every invocation with a timeout.
type HandlerFunc func(ctx context.Context) error

// Job is a recurring maintenance task. Jobs are owned and mutated
// exclusively by the Scheduler after registration.
type Job struct {
	id      string
	name    string
	handler HandlerFunc

	interval time.Duration
	cronExpr string
	schedule robfig.Schedule

	enabled        bool
	retryOnFailure bool
	maxRetries     int

	lastRun             time.Time
	nextRun             time.Time
	runCount            int
	failureCount        int
	consecutiveFailures int
}

// JobOption configures a Job at construction.
type JobOption func(*Job) error

// WithInterval sets a fixed run interval.
func WithInterval(d time.Duration) JobOption {
	return func(j *Job) error {
		if d <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
		}
		j.interval = d
		return nil
	}
}

// WithCronExpr sets a standard five-field cron expression. The expression
// is parsed here so a typo fails job construction, not a 3 AM run.
func WithCronExpr(expr string) JobOption {
	return func(j *Job) error {
		schedule, err := robfig.ParseStandard(expr)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
		}
		j.cronExpr = expr
		j.schedule = schedule
		return nil
	}
}

// WithRetryOnFailure enables failure backoff up to maxRetries
// consecutive failures.
func WithRetryOnFailure(maxRetries int) JobOption {
	return func(j *Job) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries cannot be negative")
		}
		j.retryOnFailure = true
		j.maxRetries = maxRetries
		return nil
	}
}

// Disabled registers the job without running it until EnableJob is called.
func Disabled() JobOption {
	return func(j *Job) error {
		j.enabled = false
		return nil
	}
}

// NewJob creates a recurring job. A schedule is required: either
// WithInterval or WithCronExpr (a cron expression wins when both are set,
// with the interval acting as documentation-only fallback).
func NewJob(name string, handler HandlerFunc, opts ...JobOption) (*Job, error) {
	if name == "" {
		return nil, fmt.Errorf("job name cannot be empty")
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	job := &Job{
		id:             uuid.NewString()[:8],
		name:           name,
		handler:        handler,
		enabled:        true,
		retryOnFailure: true,
		maxRetries:     3,
	}
	for _, opt := range opts {
		if err := opt(job); err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}
	}

	if job.interval <= 0 && job.schedule == nil {
		return nil, fmt.Errorf("job %q: %w", name, ErrNoSchedule)
	}

	return job, nil
}

// Name returns the job's unique registry key.
func (j *Job) Name() string { return j.name }

// shouldRun reports whether the job is due at now.
func (j *Job) shouldRun(now time.Time) bool {
	if !j.enabled {
		return false
	}
	if j.nextRun.IsZero() {
		return true
	}
	return !now.Before(j.nextRun)
}

// scheduleNext computes the next run strictly after from.
func (j *Job) scheduleNext(from time.Time) {
	if j.schedule != nil {
		j.nextRun = j.schedule.Next(from)
		return
	}
	j.nextRun = from.Add(j.interval)
}

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	IntervalMinutes     int        `json:"interval_minutes,omitempty"`
	CronExpression      string     `json:"cron_expression,omitempty"`
	Enabled             bool       `json:"enabled"`
	LastRun             *time.Time `json:"last_run,omitempty"`
	NextRun             *time.Time `json:"next_run,omitempty"`
	RunCount            int        `json:"run_count"`
	FailureCount        int        `json:"failure_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

func (j *Job) snapshot() Snapshot {
	snap := Snapshot{
		ID:                  j.id,
		Name:                j.name,
		CronExpression:      j.cronExpr,
		Enabled:             j.enabled,
		RunCount:            j.runCount,
		FailureCount:        j.failureCount,
		ConsecutiveFailures: j.consecutiveFailures,
	}
	if j.interval > 0 {
		snap.IntervalMinutes = int(j.interval / time.Minute)
	}
	if !j.lastRun.IsZero() {
		t := j.lastRun
		snap.LastRun = &t
	}
	if !j.nextRun.IsZero() {
		t := j.nextRun
		snap.NextRun = &t
	}
	return snap
}
