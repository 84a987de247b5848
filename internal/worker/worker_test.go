package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/ledger"
	"server/internal/queue"
)

type generatorFunc func(ctx context.Context, req domain.GenerationRequest) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, req domain.GenerationRequest) ([]byte, error) {
	return f(ctx, req)
}

// memStore is an in-memory artifact store with injectable Put failures.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) PresignedGet(context.Context, string, time.Duration) (string, error) {
	return "", domain.ErrPresignUnsupported
}

func (s *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func newTestWorker(gen domain.Generator, store *memStore) (*Worker, *ledger.MemoryLedger, *queue.MemoryQueue) {
	l := ledger.NewMemory(24 * time.Hour)
	q := queue.NewMemory(16)
	w := New(l, q, store, gen, zerolog.Nop())
	return w, l, q
}

func TestProcessCompletesJob(t *testing.T) {
	ctx := context.Background()
	audio := []byte("RIFF generated audio")
	store := newMemStore()
	w, l, _ := newTestWorker(generatorFunc(func(_ context.Context, req domain.GenerationRequest) ([]byte, error) {
		assert.Equal(t, "A cheerful acoustic guitar melody", req.Prompt)
		assert.Equal(t, 60, req.Duration)
		return audio, nil
	}), store)

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "A cheerful acoustic guitar melody", Duration: 60})
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, job.ID+".wav", final.ResultKey)
	assert.Empty(t, final.ErrorSummary)

	stored, ok := store.objects[job.ID+".wav"]
	require.True(t, ok, "artifact must be stored under the job key")
	assert.Equal(t, audio, stored)
}

func TestProcessRecordsGeneratorFailure(t *testing.T) {
	ctx := context.Background()
	w, l, _ := newTestWorker(generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		return nil, errors.New("model overloaded")
	}), newMemStore())

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "dark ambient drone", Duration: 30})
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Contains(t, final.ErrorSummary, "model overloaded")
	assert.Empty(t, final.ResultKey)
}

func TestProcessRecordsUploadFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.putErr = errors.New("bucket unavailable")
	w, l, _ := newTestWorker(generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		return []byte("audio"), nil
	}), store)

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "synthwave", Duration: 30})
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, "storage upload failed", final.ErrorSummary)
}

func TestProcessDropsCanceledJobSilently(t *testing.T) {
	ctx := context.Background()
	called := false
	w, l, _ := newTestWorker(generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		called = true
		return []byte("audio"), nil
	}), newMemStore())

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "jazz trio", Duration: 30})
	require.NoError(t, err)
	_, err = l.Cancel(ctx, job.ID, "owner-a")
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	assert.False(t, called, "generator must not run for a canceled job")
	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.CancelReason, final.ErrorSummary)
}

func TestProcessDropsUnknownJob(t *testing.T) {
	w, _, _ := newTestWorker(generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		t.Fatal("generator must not run")
		return nil, nil
	}), newMemStore())

	// Must not panic or create ledger state.
	w.Process(context.Background(), "no-such-job")
}

// Two workers race the same redelivered job ID; exactly one terminal
// transition wins and the ledger ends in a single consistent state.
func TestDuplicateDeliveryAcrossWorkers(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gen := generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		time.Sleep(5 * time.Millisecond) // widen the race window
		return []byte("audio"), nil
	})

	l := ledger.NewMemory(24 * time.Hour)
	w1 := New(l, queue.NewMemory(1), store, gen, zerolog.Nop())
	w2 := New(l, queue.NewMemory(1), store, gen, zerolog.Nop())

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "epic trailer score", Duration: 120})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, w := range []*Worker{w1, w2} {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Process(ctx, job.ID)
		}(w)
	}
	wg.Wait()

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, job.ID+".wav", final.ResultKey)
	assert.Empty(t, final.ErrorSummary)
}

func TestSweeperDeletesExpiredArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := ledger.NewMemory(time.Millisecond)

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "chiptune loop", Duration: 30})
	require.NoError(t, err)
	_, err = l.Transition(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing, domain.TransitionFields{})
	require.NoError(t, err)
	_, err = l.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted,
		domain.TransitionFields{ResultKey: job.ID + ".wav"})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, job.ID+".wav", []byte("audio"), "audio/wav"))

	time.Sleep(5 * time.Millisecond)

	s := NewSweeper(l, queue.NewMemory(1), store, zerolog.Nop())
	s.Sweep(ctx)

	_, err = store.Open(ctx, job.ID+".wav")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// A worker crash after claiming a job leaves the ledger in processing
// with nothing on the queue. The sweeper must requeue it and a fresh
// worker must be able to finish it.
func TestSweeperRequeuesStalledJob(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := ledger.NewMemory(24 * time.Hour)
	q := queue.NewMemory(4)
	w := New(l, q, store, generatorFunc(func(context.Context, domain.GenerationRequest) ([]byte, error) {
		return []byte("audio"), nil
	}), zerolog.Nop())

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "lofi beats", Duration: 60})
	require.NoError(t, err)
	// Simulate the crash: the claim happened, the worker never returned.
	_, err = l.Transition(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing, domain.TransitionFields{})
	require.NoError(t, err)

	s := NewSweeper(l, q, store, zerolog.Nop())
	s.reclaimAfter = 0
	s.Reclaim(ctx)

	id, err := q.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, job.ID, id)

	w.Process(ctx, id)

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, job.ID+".wav", final.ResultKey)
}

// A reclaimed job may still have its original worker alive, just slow.
// When that worker finally reports, its terminal CAS must lose and the
// redelivered run's result must stand.
func TestSlowWorkerLosesAfterReclaim(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := ledger.NewMemory(24 * time.Hour)
	q := queue.NewMemory(4)

	job, err := l.Create(ctx, "owner-a", domain.GenerationRequest{Prompt: "orchestral swell", Duration: 120})
	require.NoError(t, err)
	_, err = l.Transition(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing, domain.TransitionFields{})
	require.NoError(t, err)

	s := NewSweeper(l, q, store, zerolog.Nop())
	s.reclaimAfter = 0
	s.Reclaim(ctx)

	// The slow worker wakes up and tries to complete its stale claim.
	_, err = l.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted,
		domain.TransitionFields{ResultKey: "stale.wav"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	final, err := l.Get(ctx, job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, final.Status)
	assert.Empty(t, final.ResultKey)
}

// Shutdown cancels the worker context mid-generation. The job must stay
// in processing for the sweeper rather than being marked failed.
func TestProcessLeavesJobForReclaimOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, l, _ := newTestWorker(generatorFunc(func(genCtx context.Context, _ domain.GenerationRequest) ([]byte, error) {
		cancel()
		return nil, genCtx.Err()
	}), newMemStore())

	job, err := l.Create(context.Background(), "owner-a", domain.GenerationRequest{Prompt: "field recording", Duration: 30})
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	final, err := l.Get(context.Background(), job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, final.Status)
	assert.Empty(t, final.ErrorSummary)
}
