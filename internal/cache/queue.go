package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// SyncJob asks a worker to sync one kind of data from a provider.
// Start and Duration only apply to guide syncs; zero means the
// provider default.
type SyncJob struct {
	Provider   string    `json:"provider"`
	Kind       string    `json:"kind"`
	Start      int64     `json:"start,omitempty"`
	Duration   int64     `json:"duration,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DefaultQueue is the Redis list key used for sync jobs.
const DefaultQueue = "plutotv:jobs:sync"

// Enqueue pushes a job onto the left side of a Redis list.
func Enqueue(ctx context.Context, r *Redis, queue string, job SyncJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Dequeue blocks until a job is available on the right side of the list
// or the timeout expires. On timeout or cancellation it returns (nil, nil)
// so the caller can loop and check for shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*SyncJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	var job SyncJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}
