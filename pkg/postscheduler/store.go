package postscheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for scheduled posts. Claim and
// Cancel MUST be atomic compare-and-set operations on status: a
// promotion sweep and a concurrent cancel can never both win, and two
// sweeps can never claim the same post. This is a hard requirement of
// the design, not an optimization.
type Store interface {
	// Create persists a new post and indexes it by due time and owner.
	Create(ctx context.Context, post *Post) error

	// Get returns the post or ErrPostNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Post, error)

	// Update overwrites the post record. Indexes are not touched; the
	// caller owns the post (it has been claimed) or holds no index.
	Update(ctx context.Context, post *Post) error

	// Claim atomically transitions scheduled→processing, removes the
	// post from the due index, and registers a lease that expires at
	// leaseUntil. Returns ErrNotClaimable when the post already left
	// the scheduled state.
	Claim(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (*Post, error)

	// Cancel atomically transitions scheduled→cancelled and removes the
	// post from the due and owner indexes. Returns ErrNotCancellable
	// when the post is not scheduled.
	Cancel(ctx context.Context, id uuid.UUID) (*Post, error)

	// Reschedule writes the post back with status scheduled, re-indexes
	// it at dueAt, and clears any lease.
	Reschedule(ctx context.Context, post *Post, dueAt time.Time) error

	// MarkPublished finalizes a claimed post and clears its lease.
	// Returns ErrNotPublishable when the post is no longer processing,
	// which happens when the lease expired and the post was reclaimed.
	MarkPublished(ctx context.Context, post *Post) error

	// MoveToDLQ records the post's final state, pushes it onto the dead
	// letter queue, and removes it from the due index and lease set.
	MoveToDLQ(ctx context.Context, post *Post) error

	// DuePosts returns ids of scheduled posts with due time at or
	// before now, soonest first. A limit of zero or less means all.
	DuePosts(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// ExpiredLeases returns ids of processing posts whose lease expired
	// at or before now.
	ExpiredLeases(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// Reclaim atomically returns an expired-lease post from processing
	// to scheduled (due immediately), preserving its retry bookkeeping.
	Reclaim(ctx context.Context, id uuid.UUID) error

	// UserPosts returns a user's posts ordered by scheduled time.
	UserPosts(ctx context.Context, userID string, limit int) ([]*Post, error)

	// DLQPosts returns dead-lettered posts, most recently failed first.
	DLQPosts(ctx context.Context, limit int) ([]*Post, error)

	// RemoveFromDLQ removes the id from the DLQ listing, keeping the
	// post record. Returns ErrNotInDLQ when the id is not listed.
	RemoveFromDLQ(ctx context.Context, id uuid.UUID) error

	// DeleteDLQPost removes the id from the DLQ listing and deletes the
	// post record permanently.
	DeleteDLQPost(ctx context.Context, id uuid.UUID) error
}
