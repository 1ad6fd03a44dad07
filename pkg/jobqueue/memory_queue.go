package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue in process memory for tests and local
// development. Pop blocks on a condition channel rather than polling.
type MemoryQueue struct {
	mu       sync.Mutex
	entries  []*Entry
	statuses map[uuid.UUID]*JobStatus
	notify   chan struct{}
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		statuses: make(map[uuid.UUID]*JobStatus),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, entry *Entry) error {
	q.mu.Lock()
	entryCopy := *entry
	q.entries = append(q.entries, &entryCopy)
	q.setStatusLocked(entry.ID, StatusPending, "", "")
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*Entry, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			entry := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			entryCopy := *entry
			return &entryCopy, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) SetStatus(ctx context.Context, id uuid.UUID, status Status, result, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.setStatusLocked(id, status, result, errMsg)
	return nil
}

func (q *MemoryQueue) setStatusLocked(id uuid.UUID, status Status, result, errMsg string) {
	q.statuses[id] = &JobStatus{
		Status:    status,
		Result:    result,
		Error:     errMsg,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func (q *MemoryQueue) Status(ctx context.Context, id uuid.UUID) (*JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.statuses[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	stCopy := *st
	return &stCopy, nil
}

// Len reports the number of queued entries. Test helper.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
