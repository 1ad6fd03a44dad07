package postscheduler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// UserStats aggregates a user's posts by status and platform. Scheduled
// posts that have already failed at least once count as retrying.
func (s *Scheduler) UserStats(ctx context.Context, userID string) (*Stats, error) {
	posts, err := s.UserPosts(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByPlatform: make(map[Platform]int)}
	for _, post := range posts {
		stats.Total++
		stats.ByPlatform[post.Platform]++

		switch post.Status {
		case StatusScheduled:
			if post.RetryCount > 0 {
				stats.Retrying++
			} else {
				stats.Scheduled++
			}
		case StatusProcessing:
			stats.Processing++
		case StatusPublished:
			stats.Published++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// UserPostsByStatus returns a user's posts filtered to one status,
// ordered by scheduled time.
func (s *Scheduler) UserPostsByStatus(ctx context.Context, userID string, status Status, limit int) ([]*Post, error) {
	posts, err := s.UserPosts(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	filtered := make([]*Post, 0, len(posts))
	for _, post := range posts {
		if post.Status != status {
			continue
		}
		if limit > 0 && len(filtered) == limit {
			break
		}
		filtered = append(filtered, post)
	}
	return filtered, nil
}

// DLQPosts returns dead-lettered posts with their error classification,
// most recent failures first. A limit of zero or less returns all.
func (s *Scheduler) DLQPosts(ctx context.Context, limit int) ([]DLQEntry, error) {
	posts, err := s.store.DLQPosts(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]DLQEntry, 0, len(posts))
	for _, post := range posts {
		entry := DLQEntry{
			Post:         post,
			ErrorMessage: post.ErrorMessage,
			ErrorClass:   ClassifyError(post.ErrorMessage),
		}
		if post.FailedAt != nil {
			entry.FailedAt = *post.FailedAt
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DLQStats aggregates the dead letter queue by platform and error class.
func (s *Scheduler) DLQStats(ctx context.Context) (*DLQStats, error) {
	entries, err := s.DLQPosts(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &DLQStats{
		ByPlatform:   make(map[Platform]int),
		ByErrorClass: make(map[string]int),
	}
	for _, entry := range entries {
		stats.Total++
		stats.ByPlatform[entry.Post.Platform]++
		stats.ByErrorClass[entry.ErrorClass]++

		if !entry.FailedAt.IsZero() &&
			(stats.OldestFailure == nil || entry.FailedAt.Before(*stats.OldestFailure)) {
			failedAt := entry.FailedAt
			stats.OldestFailure = &failedAt
		}
	}
	return stats, nil
}

// RetryDLQPost pulls a post out of the dead letter queue and schedules
// it for immediate publication with a fresh retry budget. The previous
// attempts' errors are kept on the post for audit. An empty userID
// skips the ownership check (operator access).
func (s *Scheduler) RetryDLQPost(ctx context.Context, userID string, id uuid.UUID) (*Post, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && post.UserID != userID {
		return nil, ErrNotOwned
	}

	if err := s.store.RemoveFromDLQ(ctx, id); err != nil {
		return nil, err
	}

	post.RetryCount = 0
	post.ErrorMessage = ""
	post.NextRetryAt = nil
	post.FailedAt = nil

	if err := s.store.Reschedule(ctx, post, s.now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("dead-lettered post requeued", slog.String("post_id", id.String()))
	s.notify(EventScheduled, post)
	return post, nil
}

// DeleteDLQPost permanently removes a dead-lettered post. An empty
// userID skips the ownership check.
func (s *Scheduler) DeleteDLQPost(ctx context.Context, userID string, id uuid.UUID) error {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if userID != "" && post.UserID != userID {
		return ErrNotOwned
	}

	if err := s.store.DeleteDLQPost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("dead-lettered post deleted", slog.String("post_id", id.String()))
	return nil
}

// RetryDLQPosts requeues the listed dead-lettered posts, continuing
// past individual failures and reporting per-post counts.
func (s *Scheduler) RetryDLQPosts(ctx context.Context, userID string, ids []uuid.UUID) (*BulkResult, error) {
	result := &BulkResult{}
	for _, id := range ids {
		if _, err := s.RetryDLQPost(ctx, userID, id); err != nil {
			s.logger.Error("failed to requeue dead-lettered post",
				slog.String("post_id", id.String()),
				slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// DeleteDLQPosts permanently removes the listed dead-lettered posts.
func (s *Scheduler) DeleteDLQPosts(ctx context.Context, userID string, ids []uuid.UUID) (*BulkResult, error) {
	result := &BulkResult{}
	for _, id := range ids {
		if err := s.DeleteDLQPost(ctx, userID, id); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// RetryAllDLQ requeues every dead-lettered post.
func (s *Scheduler) RetryAllDLQ(ctx context.Context) (*BulkResult, error) {
	ids, err := s.dlqIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.RetryDLQPosts(ctx, "", ids)
}

// DeleteAllDLQ permanently removes every dead-lettered post.
func (s *Scheduler) DeleteAllDLQ(ctx context.Context) (*BulkResult, error) {
	ids, err := s.dlqIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.DeleteDLQPosts(ctx, "", ids)
}

func (s *Scheduler) dlqIDs(ctx context.Context) ([]uuid.UUID, error) {
	posts, err := s.store.DLQPosts(ctx, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	return ids, nil
}
