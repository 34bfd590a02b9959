package crossref

import (
	"context"
	"fmt"

	"github.com/ternarybob/autoclass/internal/models"
)

// IngestStep is a text log step with its extracted error lines
type IngestStep struct {
	models.TextLogStep
	Errors []*models.TextLogError `json:"errors"`
}

// IngestRequest is one already-parsed job as produced by the log parsers
type IngestRequest struct {
	Job          models.Job            `json:"job"`
	FailureLines []*models.FailureLine `json:"failure_lines"`
	Steps        []*IngestStep         `json:"steps"`
}

// Ingest stores a parsed job, its failure lines and text log errors in one transaction.
// Failure lines beyond the cutoff are replaced by a single truncated line.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*models.Job, error) {
	job := req.Job
	job.AutoclassifyStatus = models.StatusPending
	if err := models.Validate(&job); err != nil {
		return nil, err
	}

	err := s.storage.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.storage.JobStorage().CreateJob(ctx, &job); err != nil {
			return err
		}

		for i, fl := range req.FailureLines {
			fl.JobID = job.ID
			if err := models.Validate(fl); err != nil {
				return fmt.Errorf("failure line %d: %w", i, err)
			}
		}
		lines := Truncate(req.FailureLines, s.cutoff)
		if len(lines) > 0 {
			if err := s.storage.FailureLineStorage().CreateFailureLines(ctx, lines); err != nil {
				return err
			}
		}

		for _, step := range req.Steps {
			step.JobID = job.ID
			if err := s.storage.TextLogStorage().CreateStep(ctx, &step.TextLogStep); err != nil {
				return err
			}
			for i, tle := range step.Errors {
				tle.StepID = step.ID
				if err := models.Validate(tle); err != nil {
					return fmt.Errorf("step %s error %d: %w", step.Name, i, err)
				}
			}
			if len(step.Errors) > 0 {
				if err := s.storage.TextLogStorage().CreateTextLogErrors(ctx, step.Errors); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest job: %w", err)
	}

	s.logger.Info().
		Int64("job_id", job.ID).
		Str("signature", job.Signature).
		Int("failure_lines", len(req.FailureLines)).
		Int("steps", len(req.Steps)).
		Msg("Ingested job")
	return &job, nil
}
