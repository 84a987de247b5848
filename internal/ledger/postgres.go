// Package ledger provides the durable record of every submitted job. The
// ledger is the single source of truth for job status; all lifecycle
// transitions go through its compare-and-swap Transition.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// PostgresLedger implements domain.Ledger on top of Postgres via the
// audited SQL runner.
type PostgresLedger struct {
	runner    infra.SQLExecutor
	retention time.Duration
}

// NewPostgres constructs a ledger with the given retention window.
func NewPostgres(runner infra.SQLExecutor, retention time.Duration) *PostgresLedger {
	return &PostgresLedger{runner: runner, retention: retention}
}

// Create inserts a fresh queued job owned by ownerToken.
func (l *PostgresLedger) Create(ctx context.Context, ownerToken string, req domain.GenerationRequest) (*domain.Job, error) {
	id := uuid.NewString()
	row := l.runner.QueryRow(ctx, sqlinline.QInsertJob,
		id, ownerToken, req.Prompt, req.Duration, req.Genre, l.retention.Seconds())
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("ledger: create job: %w", err)
	}
	return job, nil
}

// Get returns the job only when ownerToken matches and the record has not
// expired. Absence, ownership mismatch, and expiry all report
// domain.ErrNotFound so existence never leaks across sessions.
func (l *PostgresLedger) Get(ctx context.Context, jobID, ownerToken string) (*domain.Job, error) {
	if !validJobID(jobID) {
		return nil, domain.ErrNotFound
	}
	row := l.runner.QueryRow(ctx, sqlinline.QSelectJobForOwner, jobID, ownerToken)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: get job: %w", err)
	}
	return job, nil
}

// Transition performs the conditional status update. The WHERE clause on
// the current status makes the update a single atomic check-and-set; a
// losing racer observes zero rows and receives ErrConflict without having
// changed anything.
func (l *PostgresLedger) Transition(ctx context.Context, jobID string, expected, next domain.JobStatus, fields domain.TransitionFields) (*domain.Job, error) {
	if !domain.CanTransition(expected, next) {
		return nil, fmt.Errorf("ledger: transition %s -> %s is not allowed", expected, next)
	}
	if !validJobID(jobID) {
		return nil, domain.ErrNotFound
	}
	row := l.runner.QueryRow(ctx, sqlinline.QTransitionJob,
		jobID, expected, next, fields.ResultKey, fields.ErrorSummary)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, fmt.Errorf("ledger: transition job: %w", err)
	}

	// Zero rows: distinguish a CAS miss from a missing record.
	var current domain.JobStatus
	statusRow := l.runner.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID)
	if scanErr := statusRow.Scan(&current); scanErr != nil {
		if infra.IsNoRows(scanErr) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: transition job: %w", scanErr)
	}
	return nil, domain.ErrConflict
}

// Cancel moves a queued job to failed with the cancellation reason. It is
// rejected with ErrConflict once the job has left the queued state.
func (l *PostgresLedger) Cancel(ctx context.Context, jobID, ownerToken string) (*domain.Job, error) {
	// No lock spans the Get and the Transition. A worker claiming the
	// job in that window just makes the CAS observe processing and
	// return ErrConflict, same as a cancel that arrived late.
	if _, err := l.Get(ctx, jobID, ownerToken); err != nil {
		return nil, err
	}
	return l.Transition(ctx, jobID, domain.JobStatusQueued, domain.JobStatusFailed,
		domain.TransitionFields{ErrorSummary: domain.CancelReason})
}

// PurgeExpired removes jobs past their retention window and returns the
// result keys of the purged records so artifacts can be deleted too.
func (l *PostgresLedger) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := l.runner.Query(ctx, sqlinline.QDeleteExpiredJobs, now)
	if err != nil {
		return nil, fmt.Errorf("ledger: purge expired: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key *string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ledger: purge expired: %w", err)
		}
		if key != nil && *key != "" {
			keys = append(keys, *key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: purge expired: %w", err)
	}
	return keys, nil
}

// ReclaimStale resets unexpired jobs stuck in queued or processing back to
// queued and returns their IDs for redelivery. A resurrected worker that
// still holds a reclaimed job loses its terminal CAS with ErrConflict, so
// duplicate execution never corrupts the record.
func (l *PostgresLedger) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := l.runner.Query(ctx, sqlinline.QReclaimStaleJobs, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ledger: reclaim stale: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ledger: reclaim stale: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: reclaim stale: %w", err)
	}
	return ids, nil
}

// validJobID filters IDs before they reach a uuid-typed column. Postgres
// raises 22P02 for malformed input, which readers would otherwise surface
// as an internal error instead of the contractual not-found.
func validJobID(jobID string) bool {
	_, err := uuid.Parse(jobID)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		resultKey *string
		errorSum  *string
	)
	err := row.Scan(
		&job.ID,
		&job.OwnerToken,
		&job.Status,
		&job.Request.Prompt,
		&job.Request.Duration,
		&job.Request.Genre,
		&resultKey,
		&errorSum,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if resultKey != nil {
		job.ResultKey = *resultKey
	}
	if errorSum != nil {
		job.ErrorSummary = *errorSum
	}
	return &job, nil
}

var _ domain.Ledger = (*PostgresLedger)(nil)
