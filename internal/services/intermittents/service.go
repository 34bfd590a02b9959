package intermittents

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/metrics"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/matching"
)

// detectorScore is the score of a match recorded by a detector
const detectorScore = 1.0

// Rematcher re-runs matching on a job regardless of its status
type Rematcher interface {
	Rematch(ctx context.Context, jobID int64) error
}

// Service mints classified failures from failures that did not reproduce on a retrigger
type Service struct {
	storage   interfaces.StorageManager
	index     interfaces.Index
	rematcher Rematcher
	detectors []matching.Detector
	catalog   *matching.Catalog
	cutoff    float64
	logger    arbor.ILogger
}

// NewService creates a new intermittent detector
func NewService(
	storage interfaces.StorageManager,
	index interfaces.Index,
	rematcher Rematcher,
	detectors []matching.Detector,
	catalog *matching.Catalog,
	cutoff float64,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:   storage,
		index:     index,
		rematcher: rematcher,
		detectors: detectors,
		catalog:   catalog,
		cutoff:    cutoff,
		logger:    logger,
	}
}

// DetectIntermittents promotes unmatched test failures on the job's siblings to new
// classified failures when at least one sibling passed. Returns the number promoted.
func (s *Service) DetectIntermittents(ctx context.Context, jobID int64) (int, error) {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	siblings, err := s.storage.JobStorage().ListSiblings(ctx, job)
	if err != nil {
		return 0, err
	}
	if !anyPassed(siblings) {
		s.logger.Debug().Int64("job_id", jobID).Int("siblings", len(siblings)).Msg("No passing sibling, skipping intermittent detection")
		return 0, nil
	}

	total := 0
	for _, sibling := range siblings {
		n, err := s.detectSibling(ctx, sibling)
		if err != nil {
			return total, fmt.Errorf("sibling %d: %w", sibling.ID, err)
		}
		total += n

		if n > 0 && detectorScore > s.cutoff {
			if err := s.rematcher.Rematch(ctx, sibling.ID); err != nil {
				return total, fmt.Errorf("rematch sibling %d: %w", sibling.ID, err)
			}
		}
	}

	if total > 0 {
		if err := s.rematcher.Rematch(ctx, jobID); err != nil {
			return total, fmt.Errorf("rematch job %d: %w", jobID, err)
		}
	}

	s.logger.Info().
		Int64("job_id", jobID).
		Int("siblings", len(siblings)).
		Int("promoted", total).
		Msg("Intermittent detection finished")
	return total, nil
}

func anyPassed(jobs []*models.Job) bool {
	for _, j := range jobs {
		if j.Result == models.ResultSuccess {
			return true
		}
	}
	return false
}

// detectSibling runs every detector over the sibling's unmatched errors
func (s *Service) detectSibling(ctx context.Context, sibling *models.Job) (int, error) {
	errs, err := s.storage.TextLogStorage().ListUnmatchedJobErrors(ctx, sibling.ID)
	if err != nil {
		return 0, err
	}
	if len(errs) == 0 {
		return 0, nil
	}

	promoted := make(map[int]bool)
	for _, d := range s.detectors {
		for _, i := range d.Detect(errs) {
			if promoted[i] {
				continue
			}
			e := errs[i]
			if e.FailureLine != nil && e.FailureLine.IsIgnored() {
				continue
			}
			if err := s.promote(ctx, e, d.Name()); err != nil {
				return len(promoted), err
			}
			promoted[i] = true
		}
	}
	return len(promoted), nil
}

// promote creates a new classified failure for e with a detector match
func (s *Service) promote(ctx context.Context, e *models.JobError, detector string) error {
	matcherID, err := s.catalog.ID(detector)
	if err != nil {
		return err
	}

	var cf *models.ClassifiedFailure
	err = s.storage.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if cf, err = s.storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil); err != nil {
			return err
		}

		if err := s.storage.MatchStorage().InsertTextLogErrorMatch(ctx, &models.TextLogErrorMatch{
			TextLogErrorID: e.ID, ClassifiedFailureID: cf.ID, MatcherID: matcherID, Score: detectorScore,
		}); err != nil {
			return err
		}
		if _, err := s.storage.TextLogStorage().PromoteBestClassification(ctx, e.ID, cf.ID); err != nil {
			return err
		}

		if e.FailureLine == nil {
			return nil
		}
		if err := s.storage.MatchStorage().InsertFailureMatch(ctx, &models.FailureMatch{
			FailureLineID: e.FailureLine.ID, ClassifiedFailureID: cf.ID, MatcherID: matcherID, Score: detectorScore,
		}); err != nil {
			return err
		}
		_, err = s.storage.FailureLineStorage().PromoteBestClassification(ctx, e.FailureLine.ID, cf.ID)
		return err
	})
	if err != nil {
		return err
	}

	metrics.IntermittentsPromotedTotal.Inc()
	s.logger.Info().
		Int64("text_log_error_id", e.ID).
		Int64("classified_failure_id", cf.ID).
		Str("detector", detector).
		Msg("Promoted intermittent failure")

	if e.FailureLine != nil && s.index != nil {
		fl := *e.FailureLine
		fl.BestClassificationID = &cf.ID
		if doc := models.NewTestFailureDoc(&fl); doc != nil {
			if err := s.index.Insert(ctx, doc); err != nil {
				s.logger.Warn().Err(err).Int64("failure_line_id", fl.ID).Msg("Failed to index failure line")
			}
		}
	}
	return nil
}
