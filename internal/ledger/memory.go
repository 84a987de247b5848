package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

// MemoryLedger keeps jobs in process memory with the same semantics as
// the Postgres ledger. It backs tests and storage-free development runs.
type MemoryLedger struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	retention time.Duration
	now       func() time.Time
}

// NewMemory constructs an in-memory ledger with the given retention window.
func NewMemory(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		jobs:      make(map[string]*domain.Job),
		retention: retention,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests use it to exercise expiry.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLedger) Create(_ context.Context, ownerToken string, req domain.GenerationRequest) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	job := &domain.Job{
		ID:         uuid.NewString(),
		OwnerToken: ownerToken,
		Status:     domain.JobStatusQueued,
		Request:    req,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(l.retention),
	}
	l.jobs[job.ID] = job
	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) Get(_ context.Context, jobID, ownerToken string) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok || job.OwnerToken != ownerToken || job.Expired(l.now()) {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) Transition(_ context.Context, jobID string, expected, next domain.JobStatus, fields domain.TransitionFields) (*domain.Job, error) {
	if !domain.CanTransition(expected, next) {
		return nil, fmt.Errorf("ledger: transition %s -> %s is not allowed", expected, next)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.Status != expected {
		return nil, domain.ErrConflict
	}

	job.Status = next
	if fields.ResultKey != "" {
		job.ResultKey = fields.ResultKey
	}
	if fields.ErrorSummary != "" {
		job.ErrorSummary = fields.ErrorSummary
	}
	job.UpdatedAt = l.now()
	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) Cancel(ctx context.Context, jobID, ownerToken string) (*domain.Job, error) {
	// Get and Transition each take the lock separately. A worker claim
	// landing between them turns the cancel into ErrConflict, which is
	// the answer a late cancel gets anyway.
	if _, err := l.Get(ctx, jobID, ownerToken); err != nil {
		return nil, err
	}
	return l.Transition(ctx, jobID, domain.JobStatusQueued, domain.JobStatusFailed,
		domain.TransitionFields{ErrorSummary: domain.CancelReason})
}

func (l *MemoryLedger) PurgeExpired(_ context.Context, now time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var keys []string
	for id, job := range l.jobs {
		if job.Expired(now) {
			if job.ResultKey != "" {
				keys = append(keys, job.ResultKey)
			}
			delete(l.jobs, id)
		}
	}
	return keys, nil
}

func (l *MemoryLedger) ReclaimStale(_ context.Context, cutoff time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var ids []string
	for id, job := range l.jobs {
		if job.Status.Terminal() || job.Expired(now) || job.UpdatedAt.After(cutoff) {
			continue
		}
		job.Status = domain.JobStatusQueued
		job.UpdatedAt = now
		ids = append(ids, id)
	}
	return ids, nil
}

var _ domain.Ledger = (*MemoryLedger)(nil)
