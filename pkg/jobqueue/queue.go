package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue is the storage contract shared by the Enqueuer and Processor.
// Pop must hand a given entry to exactly one consumer.
type Queue interface {
	// Push appends an entry to the tail of the queue.
	Push(ctx context.Context, entry *Entry) error

	// Pop blocks up to timeout for the next entry. Returns (nil, nil)
	// when the queue is empty.
	Pop(ctx context.Context, timeout time.Duration) (*Entry, error)

	// SetStatus records the observable state of an entry.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, result, errMsg string) error

	// Status returns the recorded state of an entry.
	Status(ctx context.Context, id uuid.UUID) (*JobStatus, error)
}

// RedisQueue implements Queue on a Redis list plus per-job status hashes.
type RedisQueue struct {
	client    redis.UniversalClient
	name      string
	statusTTL time.Duration
}

// NewRedisQueue creates a queue backed by the Redis list with the given
// name. Status records expire after statusTTL (a week by default) so
// completed jobs do not accumulate forever.
func NewRedisQueue(client redis.UniversalClient, name string, opts ...RedisQueueOption) *RedisQueue {
	q := &RedisQueue{
		client:    client,
		name:      name,
		statusTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RedisQueueOption configures a RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithStatusTTL sets how long job status records are retained.
func WithStatusTTL(ttl time.Duration) RedisQueueOption {
	return func(q *RedisQueue) {
		if ttl > 0 {
			q.statusTTL = ttl
		}
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) Push(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", entry.ID, err)
	}

	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("push entry %s to %q: %w", entry.ID, q.name, err)
	}

	return q.SetStatus(ctx, entry.ID, StatusPending, "", "")
}

// Pop relies on BRPOP's atomicity: Redis removes the element and hands it
// to a single blocked client, which is the exactly-one-claim guarantee
// the worker model depends on.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Entry, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop from %q: %w", q.name, err)
	}

	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("pop from %q: unexpected reply length %d", q.name, len(res))
	}

	var entry Entry
	if err := json.Unmarshal([]byte(res[1]), &entry); err != nil {
		return nil, fmt.Errorf("decode entry from %q: %w: %w", q.name, ErrMalformedEntry, err)
	}

	return &entry, nil
}

func (q *RedisQueue) SetStatus(ctx context.Context, id uuid.UUID, status Status, result, errMsg string) error {
	key := statusKey(id)

	fields := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if result != "" {
		fields["result"] = result
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, q.statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set status of job %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Status(ctx context.Context, id uuid.UUID) (*JobStatus, error) {
	fields, err := q.client.HGetAll(ctx, statusKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get status of job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	return &JobStatus{
		Status:    Status(fields["status"]),
		Result:    fields["result"],
		Error:     fields["error"],
		UpdatedAt: fields["updated_at"],
	}, nil
}

func statusKey(id uuid.UUID) string {
	return "job:" + id.String()
}
