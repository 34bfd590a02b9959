package crossref

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// errLostRace rolls back a cross-reference another task already completed
var errLostRace = errors.New("job status changed concurrently")

// Service pairs a job's structured failure lines with its text log errors
type Service struct {
	storage interfaces.StorageManager
	cutoff  int
	logger  arbor.ILogger
}

// NewService creates a new cross-referencer. cutoff bounds stored failure lines per job.
func NewService(storage interfaces.StorageManager, cutoff int, logger arbor.ILogger) *Service {
	return &Service{storage: storage, cutoff: cutoff, logger: logger}
}

// CrossReference pairs the job's lines and errors and advances it from pending to
// cross_referenced atomically. Returns false when the job was not pending or another
// run advanced it first.
func (s *Service) CrossReference(ctx context.Context, jobID int64) (bool, error) {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	switch job.AutoclassifyStatus {
	case models.StatusPending:
	case models.StatusAutoclassified:
		return false, fmt.Errorf("job %d: %w", jobID, models.ErrAlreadyAutoclassified)
	default:
		s.logger.Debug().
			Int64("job_id", jobID).
			Str("status", string(job.AutoclassifyStatus)).
			Msg("Job already cross-referenced")
		return false, nil
	}

	lines, err := s.storage.FailureLineStorage().ListFailureLines(ctx, jobID)
	if err != nil {
		return false, err
	}
	errs, err := s.storage.TextLogStorage().ListTextLogErrors(ctx, jobID)
	if err != nil {
		return false, err
	}

	pairs := Pair(lines, errs)
	paired := 0

	err = s.storage.RunInTx(ctx, func(ctx context.Context) error {
		for _, p := range pairs {
			md := &models.TextLogErrorMetadata{TextLogErrorID: p.Error.ID}
			if p.Line != nil {
				md.FailureLineID = &p.Line.ID
				paired++
			}
			if err := s.storage.TextLogStorage().UpsertMetadata(ctx, md); err != nil {
				return err
			}
		}

		ok, err := s.storage.JobStorage().AdvanceStatus(ctx, jobID, models.StatusPending, models.StatusCrossReferenced)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		s.logger.Debug().Int64("job_id", jobID).Msg("Cross-reference completed by another task")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to cross-reference job %d: %w", jobID, err)
	}

	s.logger.Info().
		Int64("job_id", jobID).
		Int("failure_lines", len(lines)).
		Int("errors", len(errs)).
		Int("paired", paired).
		Msg("Cross-referenced job")
	return true, nil
}
