// Package queue carries job IDs from the submission path to worker
// processes. The transport itself is best-effort: BRPOP removes the ID
// before the worker has done anything, so a crash mid-job loses the
// delivery. At-least-once comes from above — the sweeper requeues jobs
// the ledger still shows as stalled — which means consumers must treat
// redelivered IDs as normal; the ledger's compare-and-swap transition
// makes duplicate processing a no-op.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "musicgen:jobs"

// RedisQueue implements domain.Queue on a Redis list. Enqueue pushes the
// job ID with LPUSH; Dequeue blocks on BRPOP.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedis creates a queue on the given Redis client. An empty key selects
// the default queue name.
func NewRedis(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", jobID, err)
	}
	return nil
}

// Dequeue returns the next job ID, or an empty string when the timeout
// elapses with nothing available.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return "", nil
		}
		return "", fmt.Errorf("queue: dequeue: %w", err)
	}
	// result[0] is the list key, result[1] the job ID.
	return result[1], nil
}
