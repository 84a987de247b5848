package queue

import (
	"context"
	"errors"
	"time"

	"server/internal/domain"
)

// MemoryQueue is a channel-backed queue for tests and single-process
// development runs.
type MemoryQueue struct {
	ch chan string
}

// NewMemory creates an in-memory queue with the given buffer capacity.
func NewMemory(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryQueue{ch: make(chan string, capacity)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return errors.New("queue: full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case jobID := <-q.ch:
		return jobID, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", nil
	}
}

// Len reports the number of buffered IDs. Used by tests.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

var _ domain.Queue = (*MemoryQueue)(nil)
var _ domain.Queue = (*RedisQueue)(nil)
