package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/matching"
	"github.com/ternarybob/autoclass/internal/services/notes"
)

// manualScore is the score of a match synthesized from a human verification
const manualScore = 1.0

// Service applies human confirmations and overrides of best classifications
type Service struct {
	storage   interfaces.StorageManager
	index     interfaces.Index
	catalog   *matching.Catalog
	detectors []matching.Detector
	notes     *notes.Service
	logger    arbor.ILogger
}

// NewService creates a new verification gateway
func NewService(
	storage interfaces.StorageManager,
	index interfaces.Index,
	catalog *matching.Catalog,
	detectors []matching.Detector,
	noteService *notes.Service,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:   storage,
		index:     index,
		catalog:   catalog,
		detectors: detectors,
		notes:     noteService,
		logger:    logger,
	}
}

// target is the verified error and its paired line. Either may be nil but not both.
type target struct {
	err  *models.JobError
	line *models.FailureLine
}

func (t target) jobID() int64 {
	if t.err != nil {
		return t.err.JobID
	}
	return t.line.JobID
}

func (s *Service) resolve(ctx context.Context, req *models.VerificationRequest) (target, error) {
	if req.TextLogErrorID != 0 {
		je, err := s.storage.TextLogStorage().GetJobError(ctx, req.TextLogErrorID)
		if err != nil {
			return target{}, err
		}
		return target{err: je, line: je.FailureLine}, nil
	}

	je, err := s.storage.TextLogStorage().GetJobErrorByFailureLine(ctx, req.FailureLineID)
	if err == nil {
		return target{err: je, line: je.FailureLine}, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return target{}, err
	}

	fl, err := s.storage.FailureLineStorage().GetFailureLine(ctx, req.FailureLineID)
	if err != nil {
		return target{}, err
	}
	return target{line: fl}, nil
}

// Verify sets and marks verified the best classification of a text log error or
// failure line, and of its paired counterpart
func (s *Service) Verify(ctx context.Context, req *models.VerificationRequest) (*models.VerificationResult, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	t, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &models.VerificationResult{}
	if t.err != nil {
		result.TextLogErrorID = t.err.ID
	}
	if t.line != nil {
		result.FailureLineID = t.line.ID
	}

	err = s.storage.RunInTx(ctx, func(ctx context.Context) error {
		cfID, merged, err := s.chooseClassification(ctx, req)
		if err != nil {
			return err
		}
		result.BestClassificationID = cfID
		result.Merged = merged

		if cfID != nil {
			if err := s.ensureManualMatch(ctx, t, *cfID); err != nil {
				return err
			}
		}

		if t.err != nil {
			if err := s.storage.TextLogStorage().SetBestClassification(ctx, t.err.ID, cfID, true); err != nil {
				return err
			}
		}
		if t.line != nil {
			if err := s.storage.FailureLineStorage().SetBestClassification(ctx, t.line.ID, cfID, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify: %w", err)
	}

	s.logger.Info().
		Int64("text_log_error_id", result.TextLogErrorID).
		Int64("failure_line_id", result.FailureLineID).
		Bool("ignored", result.BestClassificationID == nil).
		Bool("merged", result.Merged).
		Str("user", req.User).
		Msg("Verified classification")

	s.reindex(ctx, t.line, result.BestClassificationID, result.Merged)

	full, err := s.notes.FullyVerified(ctx, t.jobID())
	if err != nil {
		s.logger.Warn().Err(err).Int64("job_id", t.jobID()).Msg("Failed to check job verification")
		return result, nil
	}
	if full {
		note, err := s.notes.CreateVerifiedNote(ctx, t.jobID(), req.User)
		if err != nil {
			s.logger.Warn().Err(err).Int64("job_id", t.jobID()).Msg("Failed to write verification note")
		}
		result.NoteCreated = note != nil
	}
	return result, nil
}

// chooseClassification resolves the request to a classified failure id, applying any bug number.
// nil means the line is ignorable.
func (s *Service) chooseClassification(ctx context.Context, req *models.VerificationRequest) (*int64, bool, error) {
	store := s.storage.ClassificationStorage()

	if req.ClassificationID != nil {
		if _, err := store.GetClassifiedFailure(ctx, *req.ClassificationID); err != nil {
			return nil, false, err
		}
	}

	if req.BugNumber == nil {
		return req.ClassificationID, false, nil
	}

	if req.ClassificationID == nil {
		cf, err := s.getOrCreateByBug(ctx, *req.BugNumber)
		if err != nil {
			return nil, false, err
		}
		return &cf.ID, false, nil
	}

	id, merged, err := s.setBug(ctx, *req.ClassificationID, *req.BugNumber)
	if err != nil {
		return nil, false, err
	}
	return &id, merged, nil
}

func (s *Service) getOrCreateByBug(ctx context.Context, bug int64) (*models.ClassifiedFailure, error) {
	store := s.storage.ClassificationStorage()

	cf, err := store.GetClassifiedFailureByBug(ctx, bug)
	if err == nil {
		return cf, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return store.CreateClassifiedFailure(ctx, &bug)
}

// setBug gives classified failure id the bug number. When another classified failure
// already owns the bug, id is merged into it and its id returned instead.
func (s *Service) setBug(ctx context.Context, id, bug int64) (int64, bool, error) {
	store := s.storage.ClassificationStorage()

	existing, err := store.GetClassifiedFailureByBug(ctx, bug)
	switch {
	case err == nil:
		if existing.ID == id {
			return id, false, nil
		}
		if err := store.Merge(ctx, id, existing.ID); err != nil {
			return 0, false, err
		}
		s.logger.Info().
			Int64("classified_failure_id", id).
			Int64("bug_number", bug).
			Int64("merged_into", existing.ID).
			Msg("Bug already classified, merged classified failures")
		return existing.ID, true, nil
	case !errors.Is(err, models.ErrNotFound):
		return 0, false, err
	}

	if err := store.SetBugNumber(ctx, id, bug); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// ensureManualMatch records a ManualDetector match when cf was not matched to the target yet
func (s *Service) ensureManualMatch(ctx context.Context, t target, cfID int64) error {
	matcherID, err := s.catalog.ID(models.DetectorManual)
	if err != nil {
		return err
	}
	store := s.storage.MatchStorage()

	if t.err != nil {
		matches, err := store.ListTextLogErrorMatches(ctx, t.err.ID)
		if err != nil {
			return err
		}
		if !hasTextLogMatch(matches, cfID) {
			err := store.InsertTextLogErrorMatch(ctx, &models.TextLogErrorMatch{
				TextLogErrorID: t.err.ID, ClassifiedFailureID: cfID, MatcherID: matcherID, Score: manualScore,
			})
			if err != nil && !errors.Is(err, models.ErrDuplicateMatch) {
				return err
			}
		}
	}

	if t.line != nil {
		matches, err := store.ListFailureMatches(ctx, t.line.ID)
		if err != nil {
			return err
		}
		if !hasFailureMatch(matches, cfID) {
			err := store.InsertFailureMatch(ctx, &models.FailureMatch{
				FailureLineID: t.line.ID, ClassifiedFailureID: cfID, MatcherID: matcherID, Score: manualScore,
			})
			if err != nil && !errors.Is(err, models.ErrDuplicateMatch) {
				return err
			}
		}
	}
	return nil
}

func hasTextLogMatch(matches []*models.TextLogErrorMatch, cfID int64) bool {
	for _, m := range matches {
		if m.ClassifiedFailureID == cfID {
			return true
		}
	}
	return false
}

func hasFailureMatch(matches []*models.FailureMatch, cfID int64) bool {
	for _, m := range matches {
		if m.ClassifiedFailureID == cfID {
			return true
		}
	}
	return false
}

// reindex keeps the Index in step with the verified line. After a merge every line now
// pointing at the winner is re-indexed. Failures are logged only.
func (s *Service) reindex(ctx context.Context, line *models.FailureLine, cfID *int64, merged bool) {
	if s.index == nil {
		return
	}

	if line != nil && line.Action == models.ActionTestResult {
		if cfID == nil {
			if err := s.index.Delete(ctx, []int64{line.ID}); err != nil {
				s.logger.Warn().Err(err).Int64("failure_line_id", line.ID).Msg("Failed to remove failure line from index")
			}
		} else {
			fl := *line
			fl.BestClassificationID = cfID
			s.insertDoc(ctx, &fl)
		}
	}

	if !merged || cfID == nil {
		return
	}
	lines, err := s.storage.FailureLineStorage().ListFailureLinesByClassification(ctx, *cfID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("classified_failure_id", *cfID).Msg("Failed to list merged failure lines")
		return
	}
	for _, fl := range lines {
		s.insertDoc(ctx, fl)
	}
}

func (s *Service) insertDoc(ctx context.Context, fl *models.FailureLine) {
	doc := models.NewTestFailureDoc(fl)
	if doc == nil {
		return
	}
	if err := s.index.Insert(ctx, doc); err != nil {
		s.logger.Warn().Err(err).Int64("failure_line_id", fl.ID).Msg("Failed to index failure line")
	}
}
