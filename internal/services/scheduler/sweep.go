package scheduler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// SweepJobName is the scheduler job that re-enqueues stalled jobs
const SweepJobName = "stale_job_sweep"

const sweepBatch = 500

// Sweeper re-enqueues jobs left in an intermediate status longer than staleAfter,
// e.g. after a task exhausted its retries or a follow-up enqueue was lost
type Sweeper struct {
	storage    interfaces.StorageManager
	queueMgr   interfaces.QueueManager
	staleAfter time.Duration
	now        func() time.Time
	logger     arbor.ILogger
}

// NewSweeper creates a new stale job sweeper
func NewSweeper(storage interfaces.StorageManager, queueMgr interfaces.QueueManager, staleAfter time.Duration, logger arbor.ILogger) *Sweeper {
	return &Sweeper{storage: storage, queueMgr: queueMgr, staleAfter: staleAfter, now: time.Now, logger: logger}
}

// Sweep enqueues cross-reference for stale pending jobs with failure lines and
// autoclassify for stale cross-referenced jobs. Returns the number enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	before := s.now().Add(-s.staleAfter)
	enqueued := 0

	pending, err := s.storage.JobStorage().ListStale(ctx, models.StatusPending, before, sweepBatch)
	if err != nil {
		return 0, err
	}
	for _, job := range pending {
		lines, err := s.storage.FailureLineStorage().ListFailureLines(ctx, job.ID)
		if err != nil {
			return enqueued, err
		}
		if len(lines) == 0 {
			continue
		}
		if err := s.queueMgr.Enqueue(ctx, models.QueueMessage{JobID: job.ID, Type: models.TaskCrossReference}); err != nil {
			return enqueued, err
		}
		enqueued++
	}

	crossReferenced, err := s.storage.JobStorage().ListStale(ctx, models.StatusCrossReferenced, before, sweepBatch)
	if err != nil {
		return enqueued, err
	}
	for _, job := range crossReferenced {
		if err := s.queueMgr.Enqueue(ctx, models.QueueMessage{JobID: job.ID, Type: models.TaskAutoclassify}); err != nil {
			return enqueued, err
		}
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Info().
			Int("pending", len(pending)).
			Int("cross_referenced", len(crossReferenced)).
			Int("enqueued", enqueued).
			Msg("Re-enqueued stale jobs")
	}
	return enqueued, nil
}

// Handler adapts Sweep to a scheduler job
func (s *Sweeper) Handler(ctx context.Context) func() error {
	return func() error {
		_, err := s.Sweep(ctx)
		return err
	}
}
