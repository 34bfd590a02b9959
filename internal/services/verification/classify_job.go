package verification

import (
	"context"

	"github.com/ternarybob/autoclass/internal/models"
)

// ClassifyJob propagates a whole-job classification to the job's single failure line.
// It applies only when the job has exactly one failure line and one text log error and
// some detector accepts the line. A classified line without a bug takes bugNumber;
// an unclassified line gets a new classified failure, verified by user.
// Returns nil when nothing was propagated.
func (s *Service) ClassifyJob(ctx context.Context, jobID int64, bugNumber *int64, user string) (*models.VerificationResult, error) {
	line, err := s.manualClassificationLine(ctx, jobID)
	if err != nil || line == nil {
		return nil, err
	}

	if line.BestClassificationID != nil {
		cf, err := s.storage.ClassificationStorage().GetClassifiedFailure(ctx, *line.BestClassificationID)
		if err != nil {
			return nil, err
		}
		if bugNumber == nil || cf.BugNumber != nil {
			return nil, nil
		}

		var id int64
		var merged bool
		err = s.storage.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			id, merged, err = s.setBug(ctx, cf.ID, *bugNumber)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.reindex(ctx, nil, &id, merged)
		return &models.VerificationResult{FailureLineID: line.ID, BestClassificationID: &id, Merged: merged}, nil
	}

	req := &models.VerificationRequest{FailureLineID: line.ID, BugNumber: bugNumber, User: user}
	if bugNumber == nil {
		cf, err := s.storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
		if err != nil {
			return nil, err
		}
		req.ClassificationID = &cf.ID
	}
	return s.Verify(ctx, req)
}

// manualClassificationLine returns the job's only failure line when it qualifies
func (s *Service) manualClassificationLine(ctx context.Context, jobID int64) (*models.FailureLine, error) {
	lines, err := s.storage.FailureLineStorage().ListFailureLines(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(lines) != 1 {
		return nil, nil
	}

	errs, err := s.storage.TextLogStorage().ListTextLogErrors(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(errs) != 1 {
		return nil, nil
	}

	candidate := []*models.JobError{{TextLogError: *errs[0], JobID: jobID, FailureLine: lines[0]}}
	for _, d := range s.detectors {
		if len(d.Detect(candidate)) > 0 {
			return lines[0], nil
		}
	}
	return nil, nil
}
