package postscheduler

import "errors"

var (
	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrPublisherNil is returned when a nil publisher is provided.
	ErrPublisherNil = errors.New("publisher cannot be nil")

	// ErrInvalidPlatform is returned by Schedule for an unknown platform.
	ErrInvalidPlatform = errors.New("invalid platform")

	// ErrPastScheduledTime is returned when the scheduled time is not
	// strictly in the future.
	ErrPastScheduledTime = errors.New("scheduled time must be in the future")

	// ErrMissingUserID is returned when a post has no owner.
	ErrMissingUserID = errors.New("user id is required")

	// ErrPostNotFound is returned when no post exists for the given id.
	ErrPostNotFound = errors.New("post not found")

	// ErrNotOwned is returned when the caller does not own the post.
	ErrNotOwned = errors.New("post does not belong to caller")

	// ErrNotCancellable is returned when a cancel loses the race with
	// promotion or targets a post that already left the scheduled state.
	ErrNotCancellable = errors.New("post is not in scheduled state")

	// ErrNotClaimable is returned by Claim when the post is no longer
	// scheduled; the concurrent claimer or canceller won.
	ErrNotClaimable = errors.New("post is not claimable")

	// ErrNotPublishable is returned by MarkPublished when the post is no
	// longer processing, typically after its lease expired and the post
	// was reclaimed.
	ErrNotPublishable = errors.New("post is not in processing state")

	// ErrNotInDLQ is returned when a DLQ operation targets a post that
	// is not dead-lettered.
	ErrNotInDLQ = errors.New("post is not in the dead letter queue")

	// ErrUnregisteredPlatform is returned by the publisher mux when no
	// publisher is registered for the post's platform.
	ErrUnregisteredPlatform = errors.New("no publisher registered for platform")
)
