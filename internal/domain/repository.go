package domain

import (
	"context"
	"io"
	"time"
)

// Ledger is the sole source of truth for job existence, status, and
// result linkage.
type Ledger interface {
	// Create allocates a fresh job in queued state owned by ownerToken.
	Create(ctx context.Context, ownerToken string, req GenerationRequest) (*Job, error)
	// Get returns the job only when ownerToken matches and the job has
	// not expired; every other case is ErrNotFound.
	Get(ctx context.Context, jobID, ownerToken string) (*Job, error)
	// Transition atomically moves the job from expected to next and sets
	// the accompanying fields. A status mismatch yields ErrConflict and
	// leaves the record untouched; this is the idempotency boundary for
	// at-least-once delivery.
	Transition(ctx context.Context, jobID string, expected, next JobStatus, fields TransitionFields) (*Job, error)
	// Cancel moves a queued job to failed with CancelReason. Jobs in any
	// other state yield ErrConflict.
	Cancel(ctx context.Context, jobID, ownerToken string) (*Job, error)
	// PurgeExpired deletes jobs past their retention window and returns
	// the result keys of purged completed jobs so their artifacts can be
	// removed as well.
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)
	// ReclaimStale requeues unexpired jobs that have sat in queued or
	// processing without progress since before cutoff and returns their
	// IDs for redelivery. This is the crash-recovery path: a worker that
	// died mid-job leaves a processing row behind, and a delivery lost in
	// transit leaves a queued row no worker will ever see. A worker that
	// is merely slow loses its eventual terminal CAS and the redelivered
	// job wins.
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Queue carries job IDs from submission to worker execution. Delivery
// through the transport alone is best-effort; the sweeper's ledger-driven
// reclaim restores lost deliveries, so duplicate or redelivered IDs are
// expected and must be tolerated by idempotent consumers.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks up to timeout and returns an empty ID when nothing
	// became available.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

// ArtifactStore persists generated audio addressed by an opaque key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PresignedGet mints a time-limited retrieval URL, or returns
	// ErrPresignUnsupported when the backing store cannot.
	PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Generator invokes the external inference model. The call is synchronous
// from the worker's perspective, reports no incremental progress, and must
// eventually return success or failure.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]byte, error)
}
