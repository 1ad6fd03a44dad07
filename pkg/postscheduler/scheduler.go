package postscheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler owns the post lifecycle: accepting schedules, promoting due
// posts through an atomic claim, publishing them on a bounded worker
// pool, and retrying or dead-lettering failures.
type Scheduler struct {
	store     Store
	publisher Publisher

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

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	loopWG    sync.WaitGroup
	workerWG  sync.WaitGroup
	tasks     chan *Post

	// now is swappable in tests.
	now func() time.Time
}

// NewScheduler creates a post scheduler.
func NewScheduler(store Store, publisher Publisher, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if publisher == nil {
		return nil, ErrPublisherNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Scheduler{
		store:          store,
		publisher:      publisher,
		sweepInterval:  o.sweepInterval,
		batchSize:      o.batchSize,
		workers:        o.workers,
		publishTimeout: o.publishTimeout,
		leaseTimeout:   o.leaseTimeout,
		maxRetries:     o.maxRetries,
		retryBase:      o.retryBase,
		retryMax:       o.retryMax,
		logger:         o.logger,
		notifier:       o.notifier,
		now:            time.Now,
	}, nil
}

// Schedule validates and persists a new post for future publication.
func (s *Scheduler) Schedule(ctx context.Context, input NewPost) (*Post, error) {
	if input.UserID == "" {
		return nil, ErrMissingUserID
	}
	if !input.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, input.Platform)
	}
	if !input.ScheduledTime.After(s.now()) {
		return nil, ErrPastScheduledTime
	}

	post := &Post{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Platform:       input.Platform,
		ScheduledTime:  input.ScheduledTime.UTC(),
		Status:         StatusScheduled,
		ContentType:    input.ContentType,
		Caption:        input.Caption,
		Hashtags:       input.Hashtags,
		AccountName:    input.AccountName,
		PlatformConfig: input.PlatformConfig,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.store.Create(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("post scheduled",
		slog.String("post_id", post.ID.String()),
		slog.String("platform", string(post.Platform)),
		slog.Time("scheduled_time", post.ScheduledTime))
	s.notify(EventScheduled, post)
	return post, nil
}

// GetPost returns a post after verifying ownership.
func (s *Scheduler) GetPost(ctx context.Context, userID string, id uuid.UUID) (*Post, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrNotOwned
	}
	return post, nil
}

// Cancel cancels a scheduled post. Any post no longer in the scheduled
// state, including one already cancelled, fails with ErrNotCancellable.
func (s *Scheduler) Cancel(ctx context.Context, userID string, id uuid.UUID) (*Post, error) {
	if _, err := s.GetPost(ctx, userID, id); err != nil {
		return nil, err
	}

	cancelled, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("post cancelled", slog.String("post_id", id.String()))
	s.notify(EventCancelled, cancelled)
	return cancelled, nil
}

// UserPosts returns a user's posts ordered by scheduled time. A limit of
// zero or less returns all of them.
func (s *Scheduler) UserPosts(ctx context.Context, userID string, limit int) ([]*Post, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.store.UserPosts(ctx, userID, limit)
}

// Start launches the publish workers and the promotion sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("post scheduler already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.tasks = make(chan *Post)

	for i := 0; i < s.workers; i++ {
		s.workerWG.Add(1)
		go s.worker(ctx)
	}

	s.loopWG.Add(1)
	go s.loop(ctx)

	s.logger.Info("post scheduler started",
		slog.Duration("sweep_interval", s.sweepInterval),
		slog.Int("workers", s.workers))
	return nil
}

// Stop halts the sweep, lets in-flight publishes finish, and drains the
// worker pool. Posts claimed but never handed to a worker are reclaimed
// by the next sweep once their lease expires.
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.lifecycle.Unlock()

	if cancel == nil {
		return fmt.Errorf("post scheduler not started")
	}

	cancel()
	s.loopWG.Wait()
	close(s.tasks)
	s.workerWG.Wait()

	s.logger.Info("post scheduler stopped")
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
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep reclaims dead workers' posts and promotes due ones. Each due
// post is claimed through a compare-and-set, so a replica running the
// same sweep can never pick up the same post.
func (s *Scheduler) sweep(ctx context.Context) {
	s.reclaimExpired(ctx)

	ids, err := s.store.DuePosts(ctx, s.now(), s.batchSize)
	if err != nil {
		s.logger.Error("failed to list due posts", slog.String("error", err.Error()))
		return
	}

	for _, id := range ids {
		post, err := s.store.Claim(ctx, id, s.now().Add(s.leaseTimeout))
		if err != nil {
			if errors.Is(err, ErrNotClaimable) || errors.Is(err, ErrPostNotFound) {
				continue
			}
			s.logger.Error("failed to claim post",
				slog.String("post_id", id.String()),
				slog.String("error", err.Error()))
			continue
		}

		select {
		case s.tasks <- post:
		case <-ctx.Done():
			// Shutting down mid-sweep; the lease expiry returns this
			// post to the due set.
			return
		}
	}
}

func (s *Scheduler) reclaimExpired(ctx context.Context) {
	ids, err := s.store.ExpiredLeases(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to list expired leases", slog.String("error", err.Error()))
		return
	}

	for _, id := range ids {
		if err := s.store.Reclaim(ctx, id); err != nil {
			s.logger.Error("failed to reclaim post",
				slog.String("post_id", id.String()),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Warn("reclaimed post with expired lease", slog.String("post_id", id.String()))
		if post, err := s.store.Get(ctx, id); err == nil {
			s.notify(EventReclaimed, post)
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.workerWG.Done()

	for post := range s.tasks {
		s.process(ctx, post)
	}
}

func (s *Scheduler) process(ctx context.Context, post *Post) {
	s.logger.Info("publishing post",
		slog.String("post_id", post.ID.String()),
		slog.String("platform", string(post.Platform)),
		slog.Int("attempt", post.RetryCount+1))

	result, err := s.publish(ctx, post)
	if err != nil {
		s.handleFailure(ctx, post, err)
		return
	}

	now := s.now().UTC()
	post.Status = StatusPublished
	post.PublishedAt = &now
	post.NextRetryAt = nil
	post.ErrorMessage = ""
	post.Result = map[string]any{
		"url":          result.URL,
		"platform_id":  result.PlatformID,
		"published_at": result.PublishedAt.UTC().Format(time.RFC3339),
	}

	if err := s.store.MarkPublished(ctx, post); err != nil {
		// A reclaimed lease means another worker owns the post now.
		// The platform call already happened, so delivery is
		// at-least-once in this window.
		if errors.Is(err, ErrNotPublishable) {
			s.logger.Warn("publish finished after lease reclaim",
				slog.String("post_id", post.ID.String()))
			return
		}
		s.logger.Error("failed to persist published post",
			slog.String("post_id", post.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("post published",
		slog.String("post_id", post.ID.String()),
		slog.String("platform", string(post.Platform)))
	s.notify(EventPublished, post)
}

// publish calls the platform publisher with a timeout and panic
// containment. The publish context is detached from the sweep context so
// shutdown does not abort an in-flight platform call.
func (s *Scheduler) publish(_ context.Context, post *Post) (result *PublishResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic in publisher: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	return s.publisher.Publish(ctx, post)
}

// handleFailure applies the retry policy. Every failure is treated the
// same way regardless of cause: it consumes one retry, and exhausting
// the budget dead-letters the post.
func (s *Scheduler) handleFailure(ctx context.Context, post *Post, pubErr error) {
	now := s.now().UTC()
	post.RetryCount++
	post.RetryErrors = append(post.RetryErrors,
		fmt.Sprintf("[%s] %s", now.Format(time.RFC3339), pubErr.Error()))

	if post.RetryCount < s.maxRetries {
		delay := Backoff(post.RetryCount, s.retryBase, s.retryMax)
		retryAt := now.Add(delay)
		post.NextRetryAt = &retryAt
		post.ErrorMessage = pubErr.Error()

		if err := s.store.Reschedule(ctx, post, retryAt); err != nil {
			s.logger.Error("failed to reschedule post",
				slog.String("post_id", post.ID.String()),
				slog.String("error", err.Error()))
			return
		}

		s.logger.Warn("post publish failed, retry scheduled",
			slog.String("post_id", post.ID.String()),
			slog.Int("retry_count", post.RetryCount),
			slog.Duration("backoff", delay),
			slog.String("error", pubErr.Error()))
		s.notify(EventRetryQueued, post)
		return
	}

	post.Status = StatusFailed
	post.NextRetryAt = nil
	post.FailedAt = &now
	post.ErrorMessage = fmt.Sprintf("Max retries (%d) exceeded. Last error: %s",
		s.maxRetries, pubErr.Error())

	if err := s.store.MoveToDLQ(ctx, post); err != nil {
		s.logger.Error("failed to dead-letter post",
			slog.String("post_id", post.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Error("post moved to dead letter queue",
		slog.String("post_id", post.ID.String()),
		slog.Int("retry_count", post.RetryCount),
		slog.String("error", pubErr.Error()))
	s.notify(EventDeadLettered, post)
}

func (s *Scheduler) notify(eventType EventType, post *Post) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Event{Type: eventType, Post: post, At: s.now().UTC()})
}
