package postscheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	postKeyPrefix = "scheduled_post:"
	userKeyPrefix = "scheduled_posts:user:"
	dueKey        = "scheduled_posts:due"
	processingKey = "scheduled_posts:processing"
	dlqKey        = "scheduled_posts:dlq"
)

// Post records are hashes with two fields: "status", the authoritative
// lifecycle state used for compare-and-set, and "data", the full JSON
// document. Lua scripts flip the status field and adjust indexes in a
// single atomic step; Redis executes scripts serially, which is what
// makes the claim/cancel races safe across worker replicas.
var (
	// claimScript: scheduled→processing, deindex from due, add lease.
	// KEYS: post hash, due zset, processing zset. ARGV: id, lease score.
	claimScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status ~= "scheduled" then return 0 end
redis.call("HSET", KEYS[1], "status", "processing")
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[2], ARGV[1])
return 1
`)

	// cancelScript: scheduled→cancelled, deindex from due and owner.
	// KEYS: post hash, due zset, user zset. ARGV: id.
	cancelScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status ~= "scheduled" then return 0 end
redis.call("HSET", KEYS[1], "status", "cancelled")
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
return 1
`)

	// reclaimScript: processing→scheduled after a lease expiry, re-index
	// as due immediately. KEYS: post hash, processing zset, due zset.
	// ARGV: id, now score.
	reclaimScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status ~= "processing" then
	redis.call("ZREM", KEYS[2], ARGV[1])
	return 0
end
redis.call("HSET", KEYS[1], "status", "scheduled")
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[2], ARGV[1])
return 1
`)

	// publishScript: processing→published, drop all work indexes. A post
	// whose lease was reclaimed is no longer "processing", so a stale
	// worker cannot finalize it. KEYS: post hash, due zset, processing
	// zset. ARGV: id, post JSON.
	publishScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status ~= "processing" then return 0 end
redis.call("HSET", KEYS[1], "status", "published", "data", ARGV[2])
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
return 1
`)
)

// RedisStore implements Store on Redis hashes, sorted sets, and lists.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed post store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func postKey(id uuid.UUID) string  { return postKeyPrefix + id.String() }
func userKey(userID string) string { return userKeyPrefix + userID }
func scoreOf(t time.Time) float64  { return float64(t.UnixMilli()) }
func scoreArg(t time.Time) string  { return strconv.FormatInt(t.UnixMilli(), 10) }

func (s *RedisStore) writePost(ctx context.Context, pipe redis.Pipeliner, post *Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post %s: %w", post.ID, err)
	}
	pipe.HSet(ctx, postKey(post.ID), map[string]any{
		"status": string(post.Status),
		"data":   data,
	})
	return nil
}

func (s *RedisStore) Create(ctx context.Context, post *Post) error {
	pipe := s.client.TxPipeline()
	if err := s.writePost(ctx, pipe, post); err != nil {
		return err
	}
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: scoreOf(post.ScheduledTime), Member: post.ID.String()})
	pipe.ZAdd(ctx, userKey(post.UserID), redis.Z{Score: scoreOf(post.ScheduledTime), Member: post.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create post %s: %w", post.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	fields, err := s.client.HMGet(ctx, postKey(id), "data", "status").Result()
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}

	data, ok := fields[0].(string)
	if !ok || data == "" {
		return nil, ErrPostNotFound
	}

	var post Post
	if err := json.Unmarshal([]byte(data), &post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, err)
	}

	// The hash status field is authoritative: a Lua CAS may have flipped
	// it after the JSON document was last written.
	if status, ok := fields[1].(string); ok && status != "" {
		post.Status = Status(status)
	}
	return &post, nil
}

func (s *RedisStore) Update(ctx context.Context, post *Post) error {
	pipe := s.client.TxPipeline()
	if err := s.writePost(ctx, pipe, post); err != nil {
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update post %s: %w", post.ID, err)
	}
	return nil
}

func (s *RedisStore) Claim(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (*Post, error) {
	keys := []string{postKey(id), dueKey, processingKey}
	won, err := claimScript.Run(ctx, s.client, keys, id.String(), scoreArg(leaseUntil)).Int()
	if err != nil {
		return nil, fmt.Errorf("claim post %s: %w", id, err)
	}
	if won == 0 {
		return nil, ErrNotClaimable
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *RedisStore) Cancel(ctx context.Context, id uuid.UUID) (*Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{postKey(id), dueKey, userKey(post.UserID)}
	won, err := cancelScript.Run(ctx, s.client, keys, id.String()).Int()
	if err != nil {
		return nil, fmt.Errorf("cancel post %s: %w", id, err)
	}
	if won == 0 {
		return nil, ErrNotCancellable
	}

	post.Status = StatusCancelled
	if err := s.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *RedisStore) Reschedule(ctx context.Context, post *Post, dueAt time.Time) error {
	post.Status = StatusScheduled
	post.ScheduledTime = dueAt

	pipe := s.client.TxPipeline()
	if err := s.writePost(ctx, pipe, post); err != nil {
		return err
	}
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: scoreOf(dueAt), Member: post.ID.String()})
	pipe.ZRem(ctx, processingKey, post.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reschedule post %s: %w", post.ID, err)
	}
	return nil
}

func (s *RedisStore) MarkPublished(ctx context.Context, post *Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post %s: %w", post.ID, err)
	}

	keys := []string{postKey(post.ID), dueKey, processingKey}
	ok, err := publishScript.Run(ctx, s.client, keys, post.ID.String(), data).Int()
	if err != nil {
		return fmt.Errorf("mark post %s published: %w", post.ID, err)
	}
	if ok == 0 {
		return ErrNotPublishable
	}
	return nil
}

func (s *RedisStore) MoveToDLQ(ctx context.Context, post *Post) error {
	pipe := s.client.TxPipeline()
	if err := s.writePost(ctx, pipe, post); err != nil {
		return err
	}
	pipe.LPush(ctx, dlqKey, post.ID.String())
	pipe.ZRem(ctx, dueKey, post.ID.String())
	pipe.ZRem(ctx, processingKey, post.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("move post %s to dlq: %w", post.ID, err)
	}
	return nil
}

func (s *RedisStore) DuePosts(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: scoreArg(now)}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, dueKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	return parseIDs(ids), nil
}

func (s *RedisStore) ExpiredLeases(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := s.client.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: scoreArg(now),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	return parseIDs(ids), nil
}

func (s *RedisStore) Reclaim(ctx context.Context, id uuid.UUID) error {
	keys := []string{postKey(id), processingKey, dueKey}
	won, err := reclaimScript.Run(ctx, s.client, keys, id.String(), scoreArg(time.Now())).Int()
	if err != nil {
		return fmt.Errorf("reclaim post %s: %w", id, err)
	}
	if won == 0 {
		// The worker finished after all; nothing to recover.
		return nil
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Update(ctx, post)
}

func (s *RedisStore) UserPosts(ctx context.Context, userID string, limit int) ([]*Post, error) {
	ids, err := s.client.ZRange(ctx, userKey(userID), 0, rangeEnd(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("list posts for user %s: %w", userID, err)
	}
	return s.loadPosts(ctx, ids)
}

func (s *RedisStore) DLQPosts(ctx context.Context, limit int) ([]*Post, error) {
	ids, err := s.client.LRange(ctx, dlqKey, 0, rangeEnd(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("list dlq posts: %w", err)
	}
	return s.loadPosts(ctx, ids)
}

func (s *RedisStore) RemoveFromDLQ(ctx context.Context, id uuid.UUID) error {
	removed, err := s.client.LRem(ctx, dlqKey, 0, id.String()).Result()
	if err != nil {
		return fmt.Errorf("remove post %s from dlq: %w", id, err)
	}
	if removed == 0 {
		return ErrNotInDLQ
	}
	return nil
}

func (s *RedisStore) DeleteDLQPost(ctx context.Context, id uuid.UUID) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.RemoveFromDLQ(ctx, id); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, postKey(id))
	pipe.ZRem(ctx, userKey(post.UserID), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) loadPosts(ctx context.Context, ids []string) ([]*Post, error) {
	posts := make([]*Post, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		post, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrPostNotFound) {
				continue
			}
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// rangeEnd converts a caller limit into an inclusive end index, where a
// non-positive limit means the whole range.
func rangeEnd(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit - 1)
}

func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if id, err := uuid.Parse(r); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
