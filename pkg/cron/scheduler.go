package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives a registry of recurring jobs.
type Scheduler struct {
	jobs    map[string]*Job
	mu      sync.Mutex
	results ResultStore

	tickInterval   time.Duration
	handlerTimeout time.Duration
	logger         *slog.Logger

	lifecycle sync.Mutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc

	// now is swappable in tests.
	now func() time.Time
}

// NewScheduler creates a scheduler. A nil ResultStore disables result
// recording.
func NewScheduler(results ResultStore, opts ...SchedulerOption) *Scheduler {
	options := &schedulerOptions{
		tickInterval:   10 * time.Second,
		handlerTimeout: 10 * time.Minute,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		jobs:           make(map[string]*Job),
		results:        results,
		tickInterval:   options.tickInterval,
		handlerTimeout: options.handlerTimeout,
		logger:         options.logger,
		now:            time.Now,
	}
}

// AddJob registers a job and computes its first run time.
func (s *Scheduler) AddJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.name]; exists {
		return fmt.Errorf("%w: %q", ErrJobExists, job.name)
	}

	job.scheduleNext(s.now())
	s.jobs[job.name] = job

	s.logger.Info("registered job",
		slog.String("job", job.name),
		slog.Time("next_run", job.nextRun))
	return nil
}

// RemoveJob unregisters a job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, name)
	s.logger.Info("removed job", slog.String("job", name))
}

// EnableJob re-enables a disabled job. If its next run time has already
// passed, it runs on the next tick.
func (s *Scheduler) EnableJob(name string) error {
	return s.setEnabled(name, true)
}

// DisableJob keeps the job registered but prevents it from running.
func (s *Scheduler) DisableJob(name string) error {
	return s.setEnabled(name, false)
}

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	job.enabled = enabled
	return nil
}

// RunJobNow triggers a job immediately, bypassing its schedule.
func (s *Scheduler) RunJobNow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}

	s.runJob(ctx, job)
	return nil
}

// JobStatus returns a snapshot of every registered job.
func (s *Scheduler) JobStatus() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]Snapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		snaps = append(snaps, job.snapshot())
	}
	return snaps
}

// Start begins the tick loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval))
	return nil
}

// Stop cancels the loop and waits for a running tick to finish.
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.lifecycle.Unlock()

	if cancel == nil {
		return fmt.Errorf("scheduler not started")
	}
	cancel()
	s.wg.Wait()

	s.logger.Info("cron scheduler stopped")
	return nil
}

// Run returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick evaluates every job under the registry lock, so two ticks can
// never run the same job concurrently. Handlers run inline and awaited.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, job := range s.jobs {
		if job.shouldRun(now) {
			s.runJob(ctx, job)
		}
	}
}

// runJob executes one job and updates its bookkeeping. Callers must hold s.mu.
func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	start := s.now()

	s.logger.Info("running job", slog.String("job", job.name))

	err := s.invoke(ctx, job)
	duration := s.now().Sub(start)

	if err == nil {
		job.runCount++
		job.consecutiveFailures = 0
		job.lastRun = start
		job.scheduleNext(s.now())

		s.logger.Info("job completed",
			slog.String("job", job.name),
			slog.Duration("duration", duration),
			slog.Time("next_run", job.nextRun))

		s.record(ctx, job, RunResult{
			JobID:     job.id,
			JobName:   job.name,
			Status:    RunStatusSuccess,
			Duration:  duration.Seconds(),
			Timestamp: s.now().UTC(),
		})
		return
	}

	job.failureCount++
	job.consecutiveFailures++

	s.logger.Error("job failed",
		slog.String("job", job.name),
		slog.Int("consecutive_failures", job.consecutiveFailures),
		slog.String("error", err.Error()))

	s.record(ctx, job, RunResult{
		JobID:     job.id,
		JobName:   job.name,
		Status:    RunStatusFailed,
		Error:     err.Error(),
		Timestamp: s.now().UTC(),
	})

	// Failed jobs retry with capped exponential backoff; once the budget
	// is exhausted they fall back to the regular schedule. A failure
	// never disables a job.
	if job.retryOnFailure && job.consecutiveFailures < job.maxRetries {
		backoff := failureBackoff(job.consecutiveFailures)
		job.nextRun = s.now().Add(backoff)
		s.logger.Warn("job scheduled for retry",
			slog.String("job", job.name),
			slog.Duration("backoff", backoff))
		return
	}
	job.scheduleNext(s.now())
}

// invoke runs the handler with a timeout and panic containment.
func (s *Scheduler) invoke(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job handler: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	defer cancel()

	return job.handler(ctx)
}

// failureBackoff returns min(60, 5*2^failures) seconds.
func failureBackoff(failures int) time.Duration {
	const (
		base = 5 * time.Second
		max  = 60 * time.Second
	)
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	return backoff
}

// record writes the run result and the job snapshot. Observability never
// fails a job, so store errors are only logged.
func (s *Scheduler) record(ctx context.Context, job *Job, result RunResult) {
	if s.results == nil {
		return
	}

	if err := s.results.RecordResult(ctx, result); err != nil {
		s.logger.Error("failed to record job result",
			slog.String("job", job.name),
			slog.String("error", err.Error()))
	}
	if err := s.results.SaveSnapshot(ctx, job.snapshot()); err != nil {
		s.logger.Error("failed to save job snapshot",
			slog.String("job", job.name),
			slog.String("error", err.Error()))
	}
}
