package postscheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// All mutations happen under a single mutex, which gives the same
// compare-and-set guarantees the Redis Lua scripts provide.
type MemoryStore struct {
	mu     sync.Mutex
	posts  map[uuid.UUID]*Post
	due    map[uuid.UUID]time.Time
	leases map[uuid.UUID]time.Time
	byUser map[string][]uuid.UUID
	dlq    []uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:  make(map[uuid.UUID]*Post),
		due:    make(map[uuid.UUID]time.Time),
		leases: make(map[uuid.UUID]time.Time),
		byUser: make(map[string][]uuid.UUID),
	}
}

// clonePost deep-copies via JSON so callers never share mutable state
// with the store.
func clonePost(post *Post) *Post {
	data, err := json.Marshal(post)
	if err != nil {
		panic(fmt.Sprintf("clone post: %v", err))
	}
	var clone Post
	if err := json.Unmarshal(data, &clone); err != nil {
		panic(fmt.Sprintf("clone post: %v", err))
	}
	return &clone
}

func (s *MemoryStore) Create(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[post.ID] = clonePost(post)
	s.due[post.ID] = post.ScheduledTime
	s.byUser[post.UserID] = append(s.byUser[post.UserID], post.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(post), nil
}

func (s *MemoryStore) Update(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, id uuid.UUID, leaseUntil time.Time) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	if post.Status != StatusScheduled {
		return nil, ErrNotClaimable
	}
	post.Status = StatusProcessing
	delete(s.due, id)
	s.leases[id] = leaseUntil
	return clonePost(post), nil
}

func (s *MemoryStore) Cancel(_ context.Context, id uuid.UUID) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	if post.Status != StatusScheduled {
		return nil, ErrNotCancellable
	}
	post.Status = StatusCancelled
	delete(s.due, id)
	s.removeFromUser(post.UserID, id)
	return clonePost(post), nil
}

func (s *MemoryStore) Reschedule(_ context.Context, post *Post, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	post.Status = StatusScheduled
	post.ScheduledTime = dueAt
	s.posts[post.ID] = clonePost(post)
	s.due[post.ID] = dueAt
	delete(s.leases, post.ID)
	return nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	if current.Status != StatusProcessing {
		return ErrNotPublishable
	}

	s.posts[post.ID] = clonePost(post)
	delete(s.due, post.ID)
	delete(s.leases, post.ID)
	return nil
}

func (s *MemoryStore) MoveToDLQ(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[post.ID] = clonePost(post)
	delete(s.due, post.ID)
	delete(s.leases, post.ID)
	// Newest failures first, matching the list semantics of the
	// production store.
	s.dlq = append([]uuid.UUID{post.ID}, s.dlq...)
	return nil
}

func (s *MemoryStore) DuePosts(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		id uuid.UUID
		at time.Time
	}
	entries := make([]entry, 0, len(s.due))
	for id, at := range s.due {
		if !at.After(now) {
			entries = append(entries, entry{id: id, at: at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (s *MemoryStore) ExpiredLeases(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, until := range s.leases {
		if !until.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Reclaim(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		delete(s.leases, id)
		return nil
	}
	if post.Status != StatusProcessing {
		delete(s.leases, id)
		return nil
	}
	post.Status = StatusScheduled
	delete(s.leases, id)
	s.due[id] = time.Now()
	return nil
}

func (s *MemoryStore) UserPosts(_ context.Context, userID string, limit int) ([]*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	posts := make([]*Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := s.posts[id]; ok {
			posts = append(posts, clonePost(post))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ScheduledTime.Before(posts[j].ScheduledTime)
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *MemoryStore) DLQPosts(_ context.Context, limit int) ([]*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]*Post, 0, len(s.dlq))
	for _, id := range s.dlq {
		if limit > 0 && len(posts) == limit {
			break
		}
		if post, ok := s.posts[id]; ok {
			posts = append(posts, clonePost(post))
		}
	}
	return posts, nil
}

func (s *MemoryStore) RemoveFromDLQ(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFromDLQLocked(id)
}

func (s *MemoryStore) DeleteDLQPost(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeFromDLQLocked(id); err != nil {
		return err
	}
	if post, ok := s.posts[id]; ok {
		s.removeFromUser(post.UserID, id)
	}
	delete(s.posts, id)
	return nil
}

func (s *MemoryStore) removeFromDLQLocked(id uuid.UUID) error {
	for i, queued := range s.dlq {
		if queued == id {
			s.dlq = append(s.dlq[:i], s.dlq[i+1:]...)
			return nil
		}
	}
	return ErrNotInDLQ
}

func (s *MemoryStore) removeFromUser(userID string, id uuid.UUID) {
	ids := s.byUser[userID]
	for i, queued := range ids {
		if queued == id {
			s.byUser[userID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
