package notes

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// Service decides when a job is fully classified or verified and writes its automatic notes
type Service struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewService creates a new job note service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{storage: storage, logger: logger}
}

// hasTruncated reports whether the job's failure lines were cut off
func hasTruncated(lines []*models.FailureLine) bool {
	for _, fl := range lines {
		if fl.Action == models.ActionTruncated {
			return true
		}
	}
	return false
}

// FullyAutoclassified reports whether every error of a complete job has a best classification
func (s *Service) FullyAutoclassified(ctx context.Context, jobID int64) (bool, error) {
	lines, err := s.storage.FailureLineStorage().ListFailureLines(ctx, jobID)
	if err != nil {
		return false, err
	}
	if hasTruncated(lines) {
		return false, nil
	}

	errs, err := s.storage.TextLogStorage().ListJobErrors(ctx, jobID)
	if err != nil {
		return false, err
	}
	if len(errs) == 0 {
		return false, nil
	}
	for _, e := range errs {
		if e.BestClassificationID() == nil {
			return false, nil
		}
	}
	return true, nil
}

// FullyVerified reports whether every failure line and error of a complete job is verified
func (s *Service) FullyVerified(ctx context.Context, jobID int64) (bool, error) {
	lines, err := s.storage.FailureLineStorage().ListFailureLines(ctx, jobID)
	if err != nil {
		return false, err
	}
	if hasTruncated(lines) {
		return false, nil
	}

	errs, err := s.storage.TextLogStorage().ListJobErrors(ctx, jobID)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 && len(errs) == 0 {
		return false, nil
	}

	for _, fl := range lines {
		if !fl.BestIsVerified {
			return false, nil
		}
	}
	for _, e := range errs {
		if e.Metadata == nil || !e.Metadata.BestIsVerified {
			return false, nil
		}
	}
	return true, nil
}

// CreateAutoNote writes the autoclassifier's note unless any note already exists.
// Returns nil when a note was already present.
func (s *Service) CreateAutoNote(ctx context.Context, jobID int64, classification, user string) (*models.JobNote, error) {
	return s.createNote(ctx, jobID, classification, user, s.storage.NoteStorage().JobHasNote)
}

// CreateVerifiedNote writes the note for a job a human has fully verified. Only a note
// the autoclassifier did not write blocks it. Returns nil when such a note is present.
func (s *Service) CreateVerifiedNote(ctx context.Context, jobID int64, user string) (*models.JobNote, error) {
	return s.createNote(ctx, jobID, models.ClassificationIntermittent, user, s.storage.NoteStorage().JobHasNonAutoNote)
}

func (s *Service) createNote(ctx context.Context, jobID int64, classification, user string,
	blocked func(ctx context.Context, jobID int64) (bool, error)) (*models.JobNote, error) {
	var note *models.JobNote

	err := s.storage.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := blocked(ctx, jobID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		errs, err := s.storage.TextLogStorage().ListJobErrors(ctx, jobID)
		if err != nil {
			return err
		}

		cfID, mixed := jobClassification(errs)
		note = &models.JobNote{
			JobID:                 jobID,
			FailureClassification: classification,
			ClassifiedFailureID:   cfID,
			User:                  user,
		}
		if mixed {
			note.FailureClassification = models.ClassificationIntermittentMixed
		}
		if err := s.storage.NoteStorage().CreateJobNote(ctx, note); err != nil {
			return err
		}

		return s.mapBugs(ctx, jobID, errs, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note for job %d: %w", jobID, err)
	}

	if note != nil {
		s.logger.Info().
			Int64("job_id", jobID).
			Str("classification", note.FailureClassification).
			Str("user", note.Who()).
			Msg("Created job note")
	}
	return note, nil
}

// jobClassification returns the single best classification shared by the errors.
// mixed is set when they disagree.
func jobClassification(errs []*models.JobError) (*int64, bool) {
	var single *int64
	for _, e := range errs {
		cf := e.BestClassificationID()
		if cf == nil {
			continue
		}
		if single == nil {
			single = cf
			continue
		}
		if *single != *cf {
			return nil, true
		}
	}
	return single, false
}

// mapBugs records the bugs of the job's verified classifications
func (s *Service) mapBugs(ctx context.Context, jobID int64, errs []*models.JobError, user string) error {
	seen := make(map[int64]bool)
	for _, e := range errs {
		cf := e.BestClassificationID()
		if cf == nil || !e.Metadata.BestIsVerified || seen[*cf] {
			continue
		}
		seen[*cf] = true

		classified, err := s.storage.ClassificationStorage().GetClassifiedFailure(ctx, *cf)
		if err != nil {
			return err
		}
		if classified.BugNumber == nil {
			continue
		}
		if _, err := s.storage.NoteStorage().GetOrCreateBugJobMap(ctx, jobID, *classified.BugNumber, user); err != nil {
			return err
		}
	}
	return nil
}
