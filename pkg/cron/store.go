package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunStatus is the outcome of a single job run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunResult is one recorded job execution.
type RunResult struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	Status    RunStatus `json:"status"`
	Duration  float64   `json:"duration"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultStore persists run results and job snapshots for observability.
type ResultStore interface {
	// RecordResult appends a run result to the job's trimmed history.
	RecordResult(ctx context.Context, result RunResult) error

	// SaveSnapshot upserts the job's current state.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// resultHistoryLen is how many results are kept per job, newest first.
const resultHistoryLen = 100

const (
	jobsKey          = "scheduler:jobs"
	resultsKeyPrefix = "scheduler:results:"
)

// RedisResultStore keeps the last 100 results per job in a Redis list and
// job snapshots in a single hash keyed by job name.
type RedisResultStore struct {
	client redis.UniversalClient
}

// NewRedisResultStore creates a Redis-backed result store.
func NewRedisResultStore(client redis.UniversalClient) *RedisResultStore {
	return &RedisResultStore{client: client}
}

func (s *RedisResultStore) RecordResult(ctx context.Context, result RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result for %q: %w", result.JobName, err)
	}

	key := resultsKeyPrefix + result.JobName

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, resultHistoryLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record run result for %q: %w", result.JobName, err)
	}
	return nil
}

func (s *RedisResultStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %q: %w", snap.Name, err)
	}

	if err := s.client.HSet(ctx, jobsKey, snap.Name, data).Err(); err != nil {
		return fmt.Errorf("save snapshot for %q: %w", snap.Name, err)
	}
	return nil
}

// Results returns the recorded history for a job, newest first.
func (s *RedisResultStore) Results(ctx context.Context, jobName string, limit int) ([]RunResult, error) {
	if limit <= 0 || limit > resultHistoryLen {
		limit = resultHistoryLen
	}

	raw, err := s.client.LRange(ctx, resultsKeyPrefix+jobName, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load results for %q: %w", jobName, err)
	}

	results := make([]RunResult, 0, len(raw))
	for _, item := range raw {
		var r RunResult
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}
