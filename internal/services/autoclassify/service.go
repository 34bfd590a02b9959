package autoclassify

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/metrics"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/matching"
	"github.com/ternarybob/autoclass/internal/services/notes"
)

// Service matches a job's unmatched errors against known classified failures
type Service struct {
	storage    interfaces.StorageManager
	index      interfaces.Index
	matchers   []matching.Matcher
	catalog    *matching.Catalog
	notes      *notes.Service
	cutoff     float64
	goodEnough float64
	logger     arbor.ILogger
}

// NewService creates a new autoclassifier. matchers run in the given order.
func NewService(
	storage interfaces.StorageManager,
	index interfaces.Index,
	matchers []matching.Matcher,
	catalog *matching.Catalog,
	noteService *notes.Service,
	config *common.ClassifierConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:    storage,
		index:      index,
		matchers:   matchers,
		catalog:    catalog,
		notes:      noteService,
		cutoff:     config.CutoffRatio,
		goodEnough: config.GoodEnoughRatio,
		logger:     logger,
	}
}

// Classify autoclassifies a cross-referenced failed job and advances its status.
// Passing jobs are ignored. Jobs in any other status return models.ErrInvalidStatus,
// or models.ErrAlreadyAutoclassified when already done.
func (s *Service) Classify(ctx context.Context, jobID int64) error {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsFailure() {
		s.logger.Debug().Int64("job_id", jobID).Str("result", job.Result).Msg("Skipping autoclassify of non-failed job")
		return nil
	}

	switch job.AutoclassifyStatus {
	case models.StatusCrossReferenced:
	case models.StatusAutoclassified:
		s.logger.Error().Int64("job_id", jobID).Msg("Autoclassify called for already autoclassified job")
		return fmt.Errorf("job %d: %w", jobID, models.ErrAlreadyAutoclassified)
	default:
		s.logger.Error().
			Int64("job_id", jobID).
			Str("status", string(job.AutoclassifyStatus)).
			Msg("Autoclassify called for job in the wrong state")
		return fmt.Errorf("job %d is %s: %w", jobID, job.AutoclassifyStatus, models.ErrInvalidStatus)
	}

	status, err := s.run(ctx, job)
	if err != nil {
		s.logger.Error().Err(err).Int64("job_id", jobID).Msg("Autoclassify failed")
		status = models.StatusFailed
	}

	if _, advErr := s.storage.JobStorage().AdvanceStatus(ctx, jobID, models.StatusCrossReferenced, status); advErr != nil {
		if err == nil {
			err = advErr
		}
		s.logger.Error().Err(advErr).Int64("job_id", jobID).Msg("Failed to record autoclassify status")
	} else if err != nil {
		// The job is now failed and no retry can pass the status check
		err = fmt.Errorf("%w: %w", models.ErrClassifyFailed, err)
	}
	metrics.ClassifyTotal.WithLabelValues(string(status)).Inc()

	s.logger.Info().
		Int64("job_id", jobID).
		Str("status", string(status)).
		Msg("Autoclassify finished")
	return err
}

// Rematch runs matching for the job without the status precondition or a status change.
// Used after new classified failures appear on a job that was already classified.
func (s *Service) Rematch(ctx context.Context, jobID int64) error {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, job)
	return err
}

// run performs the matching steps and returns the status the job should take
func (s *Service) run(ctx context.Context, job *models.Job) (models.AutoclassifyStatus, error) {
	unmatched, err := s.storage.TextLogStorage().ListUnmatchedJobErrors(ctx, job.ID)
	if err != nil {
		return "", err
	}
	if len(unmatched) == 0 {
		s.logger.Debug().Int64("job_id", job.ID).Msg("No unmatched errors")
		return models.StatusAutoclassified, nil
	}
	if !anyPaired(unmatched) {
		s.logger.Debug().Int64("job_id", job.ID).Int("errors", len(unmatched)).Msg("No errors paired with failure lines")
		return models.StatusSkipped, nil
	}

	matches, err := s.match(ctx, unmatched)
	if err != nil {
		return "", err
	}

	promoted, err := s.persist(ctx, matches)
	if err != nil {
		return "", err
	}
	s.reindex(ctx, promoted)

	s.maybeNote(ctx, job.ID)
	return models.StatusAutoclassified, nil
}

func anyPaired(errs []*models.JobError) bool {
	for _, e := range errs {
		if e.Paired() {
			return true
		}
	}
	return false
}

// match runs the matchers in order, dropping errors from later matchers once good enough
func (s *Service) match(ctx context.Context, unmatched []*models.JobError) ([]matching.Match, error) {
	var all []matching.Match
	remaining := unmatched

	for _, m := range s.matchers {
		if len(remaining) == 0 {
			break
		}

		found, err := m.MatchAll(ctx, remaining)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}

		done := make(map[int64]bool)
		for _, match := range found {
			s.logger.Debug().
				Str("matcher", match.Matcher).
				Int64("text_log_error_id", match.Error.ID).
				Int64("classified_failure_id", match.ClassifiedFailureID).
				Float64("score", match.Score).
				Msg("Found match")
			metrics.MatchesTotal.WithLabelValues(match.Matcher).Inc()

			if match.Score >= s.goodEnough {
				done[match.Error.ID] = true
			}
		}
		all = append(all, found...)

		next := remaining[:0:0]
		for _, e := range remaining {
			if !done[e.ID] {
				next = append(next, e)
			}
		}
		remaining = next
	}
	return all, nil
}

// persist stores the matches and promotes each error's best match above the cutoff.
// Returns the failure lines whose best classification was set.
func (s *Service) persist(ctx context.Context, matches []matching.Match) ([]*models.FailureLine, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	var promoted []*models.FailureLine
	err := s.storage.RunInTx(ctx, func(ctx context.Context) error {
		promoted = nil
		for _, m := range matches {
			if err := s.insertMatch(ctx, m); err != nil {
				return err
			}
		}

		for _, best := range s.catalog.BestByError(matches) {
			if best.Score < s.cutoff {
				continue
			}
			fl, err := s.promote(ctx, best.Error, best.ClassifiedFailureID)
			if err != nil {
				return err
			}
			if fl != nil {
				promoted = append(promoted, fl)
			}
		}
		return nil
	})
	return promoted, err
}

func (s *Service) insertMatch(ctx context.Context, m matching.Match) error {
	matcherID, err := s.catalog.ID(m.Matcher)
	if err != nil {
		return err
	}

	err = s.storage.MatchStorage().InsertTextLogErrorMatch(ctx, &models.TextLogErrorMatch{
		TextLogErrorID:      m.Error.ID,
		ClassifiedFailureID: m.ClassifiedFailureID,
		MatcherID:           matcherID,
		Score:               m.Score,
	})
	if err != nil && !errors.Is(err, models.ErrDuplicateMatch) {
		return err
	}
	if err != nil {
		s.logger.Warn().
			Int64("text_log_error_id", m.Error.ID).
			Int64("classified_failure_id", m.ClassifiedFailureID).
			Str("matcher", m.Matcher).
			Msg("Match already exists")
	}

	if m.Error.FailureLine == nil {
		return nil
	}
	err = s.storage.MatchStorage().InsertFailureMatch(ctx, &models.FailureMatch{
		FailureLineID:       m.Error.FailureLine.ID,
		ClassifiedFailureID: m.ClassifiedFailureID,
		MatcherID:           matcherID,
		Score:               m.Score,
	})
	if errors.Is(err, models.ErrDuplicateMatch) {
		return nil
	}
	return err
}

// promote sets cf as best classification of the error and its paired line when unset or the same.
// Returns the updated line when it became indexable.
func (s *Service) promote(ctx context.Context, e *models.JobError, cfID int64) (*models.FailureLine, error) {
	if _, err := s.storage.TextLogStorage().PromoteBestClassification(ctx, e.ID, cfID); err != nil {
		return nil, err
	}
	if e.FailureLine == nil {
		return nil, nil
	}

	ok, err := s.storage.FailureLineStorage().PromoteBestClassification(ctx, e.FailureLine.ID, cfID)
	if err != nil || !ok {
		return nil, err
	}
	fl := *e.FailureLine
	fl.BestClassificationID = &cfID
	fl.BestIsVerified = false
	return &fl, nil
}

// reindex upserts classified test failures into the Index. Failures are logged only.
func (s *Service) reindex(ctx context.Context, lines []*models.FailureLine) {
	if s.index == nil {
		return
	}
	for _, fl := range lines {
		doc := models.NewTestFailureDoc(fl)
		if doc == nil {
			continue
		}
		if err := s.index.Insert(ctx, doc); err != nil {
			s.logger.Warn().Err(err).Int64("failure_line_id", fl.ID).Msg("Failed to index failure line")
		}
	}
}

// maybeNote writes the automatic note once every error is classified. Failures are logged only.
func (s *Service) maybeNote(ctx context.Context, jobID int64) {
	full, err := s.notes.FullyAutoclassified(ctx, jobID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("job_id", jobID).Msg("Failed to check job classification")
		return
	}
	if !full {
		return
	}
	if _, err := s.notes.CreateAutoNote(ctx, jobID, models.ClassificationAutoclassifiedIntermittent, ""); err != nil {
		s.logger.Warn().Err(err).Int64("job_id", jobID).Msg("Failed to write autoclassify note")
	}
}
