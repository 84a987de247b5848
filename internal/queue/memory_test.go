package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Enqueue(ctx, "job-2"))

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "job-1", first)
	assert.Equal(t, "job-2", second)
}

func TestMemoryQueueDequeueTimesOutEmpty(t *testing.T) {
	q := NewMemory(4)

	jobID, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestMemoryQueueDequeueStopsOnCancel(t *testing.T) {
	q := NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobID, err := q.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestMemoryQueueToleratesDuplicateIDs(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	// At-least-once semantics: the same ID may be enqueued twice and both
	// deliveries surface. Deduplication is the consumer's job.
	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Enqueue(ctx, "job-1"))
	assert.Equal(t, 2, q.Len())
}

func TestMemoryQueueEnqueueFailsWhenFull(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	assert.Error(t, q.Enqueue(ctx, "job-2"))
}
