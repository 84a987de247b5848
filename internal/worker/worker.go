// Package worker drives the job lifecycle state machine: dequeue, claim
// via compare-and-swap, invoke inference, upload the artifact, and record
// the terminal status. Any number of workers may run concurrently; losing
// a CAS is a silent no-op, which makes at-least-once redelivery safe.
package worker

import (
	"context"
	"errors"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

const (
	defaultDequeueTimeout = 2 * time.Second
	defaultBackoff        = 2 * time.Second

	audioContentType = "audio/wav"
)

// Worker executes generation jobs pulled from the queue.
type Worker struct {
	ledger    domain.Ledger
	queue     domain.Queue
	store     domain.ArtifactStore
	generator domain.Generator
	logger    infra.Logger

	dequeueTimeout time.Duration
	backoff        time.Duration
}

// New wires a worker from its collaborators.
func New(ledger domain.Ledger, queue domain.Queue, store domain.ArtifactStore, generator domain.Generator, logger infra.Logger) *Worker {
	return &Worker{
		ledger:         ledger,
		queue:          queue,
		store:          store,
		generator:      generator,
		logger:         logger,
		dequeueTimeout: defaultDequeueTimeout,
		backoff:        defaultBackoff,
	}
}

// Run processes jobs until the context is canceled. Per-job failures are
// recorded in the ledger and never stop the loop; only queue-level errors
// trigger a backoff.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		jobID, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: dequeue failed")
			w.sleep(ctx)
			continue
		}
		if jobID == "" {
			continue
		}

		w.Process(ctx, jobID)
	}
}

// Process runs the full lifecycle for one dequeued job ID. It is exported
// so tests can drive single deliveries without the loop.
func (w *Worker) Process(ctx context.Context, jobID string) {
	job, err := w.ledger.Transition(ctx, jobID, domain.JobStatusQueued, domain.JobStatusProcessing, domain.TransitionFields{})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			// Already claimed, canceled, or finished by another worker.
			w.logger.Debug().Str("job_id", jobID).Msg("worker: job already claimed, dropping delivery")
		case errors.Is(err, domain.ErrNotFound):
			w.logger.Warn().Str("job_id", jobID).Msg("worker: dequeued job has no ledger record, dropping")
		default:
			w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: claim failed")
		}
		return
	}

	w.logger.Info().Str("job_id", job.ID).Int("duration", job.Request.Duration).Msg("worker: picked job")

	audio, err := w.generator.Generate(ctx, job.Request)
	if err != nil {
		// On shutdown the cancellation itself aborts generation. That
		// is not the job's fault: leave it in processing so the
		// sweeper requeues it instead of recording a bogus failure.
		if ctx.Err() != nil {
			w.logger.Info().Str("job_id", job.ID).Msg("worker: shutting down mid-job, leaving for reclaim")
			return
		}
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: generation failed")
		w.fail(ctx, job.ID, err.Error())
		return
	}

	key := job.ArtifactKey()
	if err := w.store.Put(ctx, key, audio, audioContentType); err != nil {
		if ctx.Err() != nil {
			w.logger.Info().Str("job_id", job.ID).Msg("worker: shutting down mid-job, leaving for reclaim")
			return
		}
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: artifact upload failed")
		w.fail(ctx, job.ID, "storage upload failed")
		return
	}

	_, err = w.ledger.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted,
		domain.TransitionFields{ResultKey: key})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			w.logger.Debug().Str("job_id", job.ID).Msg("worker: completion lost the race, discarding")
			return
		}
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: completion transition failed")
		return
	}

	w.logger.Info().Str("job_id", job.ID).Str("result_key", key).Msg("worker: job completed")
}

// fail records a terminal failure, tolerating a lost CAS silently.
func (w *Worker) fail(ctx context.Context, jobID, summary string) {
	_, err := w.ledger.Transition(ctx, jobID, domain.JobStatusProcessing, domain.JobStatusFailed,
		domain.TransitionFields{ErrorSummary: summary})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: failure transition failed")
	}
}

func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
