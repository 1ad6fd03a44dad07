package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore captures results and snapshots in memory.
type recordingStore struct {
	mu        sync.Mutex
	results   []RunResult
	snapshots []Snapshot

	recordErr error
}

func (s *recordingStore) RecordResult(_ context.Context, result RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *recordingStore) lastResult() (RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return RunResult{}, false
	}
	return s.results[len(s.results)-1], true
}

func newTestScheduler(t *testing.T, store ResultStore) *Scheduler {
	t.Helper()
	return NewScheduler(store, WithTickInterval(time.Hour))
}

func TestSchedulerAddRemove(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, nil)

	job, err := NewJob("refresh", noopHandler, WithInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.AddJob(job))

	t.Run("duplicate name", func(t *testing.T) {
		dup, err := NewJob("refresh", noopHandler, WithInterval(time.Hour))
		require.NoError(t, err)
		assert.ErrorIs(t, s.AddJob(dup), ErrJobExists)
	})

	t.Run("nil job", func(t *testing.T) {
		assert.Error(t, s.AddJob(nil))
	})

	t.Run("status lists registered jobs", func(t *testing.T) {
		snaps := s.JobStatus()
		require.Len(t, snaps, 1)
		assert.Equal(t, "refresh", snaps[0].Name)
	})

	t.Run("remove", func(t *testing.T) {
		s.RemoveJob("refresh")
		assert.Empty(t, s.JobStatus())
	})
}

func TestSchedulerEnableDisable(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, nil)

	job, err := NewJob("refresh", noopHandler, WithInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.DisableJob("refresh"))
	assert.False(t, job.enabled)

	require.NoError(t, s.EnableJob("refresh"))
	assert.True(t, job.enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
}

func TestSchedulerTick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("runs due jobs and records success", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		s := newTestScheduler(t, store)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		ran := 0
		job, err := NewJob("refresh", func(context.Context) error {
			ran++
			return nil
		}, WithInterval(30*time.Minute))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		// Not due yet.
		s.tick(ctx)
		assert.Zero(t, ran)

		now = now.Add(30 * time.Minute)
		s.tick(ctx)
		assert.Equal(t, 1, ran)
		assert.Equal(t, 1, job.runCount)
		assert.Equal(t, now.Add(30*time.Minute), job.nextRun)

		result, ok := store.lastResult()
		require.True(t, ok)
		assert.Equal(t, RunStatusSuccess, result.Status)
		assert.Equal(t, "refresh", result.JobName)
	})

	t.Run("disabled job is skipped", func(t *testing.T) {
		t.Parallel()
		s := newTestScheduler(t, nil)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		ran := 0
		job, err := NewJob("refresh", func(context.Context) error {
			ran++
			return nil
		}, WithInterval(time.Minute), Disabled())
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		now = now.Add(time.Hour)
		s.tick(ctx)
		assert.Zero(t, ran)
	})

	t.Run("tick runs every due job inline", func(t *testing.T) {
		// Handlers run under the registry lock: one tick executes due
		// jobs sequentially, never concurrently.
		t.Parallel()
		s := newTestScheduler(t, nil)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		var order []string
		for _, name := range []string{"a", "b"} {
			job, err := NewJob(name, func(context.Context) error {
				order = append(order, name)
				return nil
			}, WithInterval(time.Minute))
			require.NoError(t, err)
			require.NoError(t, s.AddJob(job))
		}

		now = now.Add(time.Minute)
		s.tick(ctx)
		assert.Len(t, order, 2)
	})
}

func TestSchedulerFailureHandling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("failure schedules capped backoff retry", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		s := newTestScheduler(t, store)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		job, err := NewJob("flaky", func(context.Context) error {
			return errors.New("upstream unavailable")
		}, WithInterval(time.Hour), WithRetryOnFailure(3))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		now = now.Add(time.Hour)
		s.tick(ctx)

		assert.Equal(t, 1, job.consecutiveFailures)
		assert.Equal(t, now.Add(10*time.Second), job.nextRun, "min(60, 5*2^1) seconds")

		result, ok := store.lastResult()
		require.True(t, ok)
		assert.Equal(t, RunStatusFailed, result.Status)
		assert.Contains(t, result.Error, "upstream unavailable")

		// Second consecutive failure doubles the backoff.
		now = job.nextRun
		s.tick(ctx)
		assert.Equal(t, 2, job.consecutiveFailures)
		assert.Equal(t, now.Add(20*time.Second), job.nextRun)
	})

	t.Run("exhausted retries fall back to the regular schedule", func(t *testing.T) {
		t.Parallel()
		s := newTestScheduler(t, nil)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		job, err := NewJob("flaky", func(context.Context) error {
			return errors.New("still broken")
		}, WithInterval(time.Hour), WithRetryOnFailure(2))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		for i := 0; i < 2; i++ {
			now = job.nextRun
			s.tick(ctx)
		}

		assert.Equal(t, 2, job.consecutiveFailures)
		assert.Equal(t, now.Add(time.Hour), job.nextRun, "regular interval, not backoff")
		assert.True(t, job.enabled, "failures never disable a job")
	})

	t.Run("success resets consecutive failures", func(t *testing.T) {
		t.Parallel()
		s := newTestScheduler(t, nil)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		fail := true
		job, err := NewJob("flaky", func(context.Context) error {
			if fail {
				return errors.New("transient")
			}
			return nil
		}, WithInterval(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		now = job.nextRun
		s.tick(ctx)
		require.Equal(t, 1, job.consecutiveFailures)

		fail = false
		now = job.nextRun
		s.tick(ctx)
		assert.Zero(t, job.consecutiveFailures)
		assert.Equal(t, 1, job.failureCount, "lifetime counter is kept")
		assert.Equal(t, 1, job.runCount)
	})

	t.Run("panicking handler counts as failure", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		s := newTestScheduler(t, store)

		job, err := NewJob("panicky", func(context.Context) error {
			panic("boom")
		}, WithInterval(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		require.NoError(t, s.RunJobNow(ctx, "panicky"))

		assert.Equal(t, 1, job.consecutiveFailures)
		result, ok := store.lastResult()
		require.True(t, ok)
		assert.Contains(t, result.Error, "panic in job handler")
	})

	t.Run("store errors do not fail the job", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{recordErr: errors.New("redis down")}
		s := newTestScheduler(t, store)

		job, err := NewJob("refresh", noopHandler, WithInterval(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.AddJob(job))

		require.NoError(t, s.RunJobNow(ctx, "refresh"))
		assert.Equal(t, 1, job.runCount)
		assert.Zero(t, job.consecutiveFailures)
	})
}

func TestRunJobNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestScheduler(t, nil)

	ran := 0
	job, err := NewJob("refresh", func(context.Context) error {
		ran++
		return nil
	}, WithInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJobNow(ctx, "refresh"))
	assert.Equal(t, 1, ran)

	assert.ErrorIs(t, s.RunJobNow(ctx, "missing"), ErrJobNotFound)
}

func TestSchedulerLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewScheduler(nil, WithTickInterval(10*time.Millisecond))

	var (
		mu  sync.Mutex
		ran int
	)
	job, err := NewJob("refresh", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		ran++
		return nil
	}, WithInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "double start")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "double stop")
}
