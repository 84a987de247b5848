package worker

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

const (
	defaultSweepInterval = 10 * time.Minute

	// defaultReclaimAfter is how long a job may sit in queued or
	// processing without progress before the sweeper assumes its
	// delivery was lost or its worker died. It must comfortably exceed
	// the longest generation run so slow workers are not reclaimed
	// mid-inference.
	defaultReclaimAfter = 15 * time.Minute
)

// Sweeper periodically purges expired jobs with their artifacts and
// requeues jobs whose delivery was lost. Expiry is already enforced at
// read time by the ledger, so the purge half is purely hygienic; the
// reclaim half is the crash-recovery path and is what makes delivery
// at-least-once end to end.
type Sweeper struct {
	ledger       domain.Ledger
	queue        domain.Queue
	store        domain.ArtifactStore
	logger       infra.Logger
	interval     time.Duration
	reclaimAfter time.Duration
}

// NewSweeper builds a sweeper with the default interval and reclaim age.
func NewSweeper(ledger domain.Ledger, queue domain.Queue, store domain.ArtifactStore, logger infra.Logger) *Sweeper {
	return &Sweeper{
		ledger:       ledger,
		queue:        queue,
		store:        store,
		logger:       logger,
		interval:     defaultSweepInterval,
		reclaimAfter: defaultReclaimAfter,
	}
}

// Run sweeps on a ticker until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired ledger rows, deletes their artifacts, and
// redelivers stalled jobs.
func (s *Sweeper) Sweep(ctx context.Context) {
	keys, err := s.ledger.PurgeExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: purge expired jobs failed")
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("result_key", key).Msg("sweeper: artifact delete failed")
		}
	}
	if len(keys) > 0 {
		s.logger.Info().Int("purged", len(keys)).Msg("sweeper: removed expired artifacts")
	}

	s.Reclaim(ctx)
}

// Reclaim resets stalled jobs to queued and puts them back on the queue.
// A job that was still queued merely gets a duplicate delivery, which the
// claim CAS makes harmless; a job stuck in processing after a worker
// crash gets its only second chance here.
func (s *Sweeper) Reclaim(ctx context.Context) {
	ids, err := s.ledger.ReclaimStale(ctx, time.Now().Add(-s.reclaimAfter))
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: reclaim stale jobs failed")
		return
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			// The ledger row is already queued again, so a later
			// sweep will retry the enqueue.
			s.logger.Error().Err(err).Str("job_id", id).Msg("sweeper: requeue failed")
		}
	}
	if len(ids) > 0 {
		s.logger.Info().Int("reclaimed", len(ids)).Msg("sweeper: requeued stalled jobs")
	}
}
