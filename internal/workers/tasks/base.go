// -----------------------------------------------------------------------
// Task workers - one task type per worker, one CI job per task
// -----------------------------------------------------------------------

package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/queue"
)

// validateTask checks that msg is a task of taskType against a job
func validateTask(msg *models.QueueMessage, taskType string) error {
	if msg.Type != taskType {
		return fmt.Errorf("%w: task type %q, want %q", models.ErrInvalidRequest, msg.Type, taskType)
	}
	if msg.JobID <= 0 {
		return fmt.Errorf("%w: missing job id", models.ErrInvalidRequest)
	}
	return nil
}

// settle maps status errors that retrying cannot fix. A job already past the
// task's stage completes the task; a job in an unexpected or failed state fails it.
func settle(logger arbor.ILogger, msg *models.QueueMessage, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrAlreadyAutoclassified):
		logger.Debug().Int64("job_id", msg.JobID).Str("task_type", msg.Type).Msg("Job already autoclassified")
		return nil
	case errors.Is(err, models.ErrInvalidStatus), errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrClassifyFailed):
		return queue.NonRetryable(err)
	}
	return err
}

// enqueueNext queues the follow-up task for the job
func enqueueNext(ctx context.Context, qm interfaces.QueueManager, logger arbor.ILogger, jobID int64, taskType string) error {
	if err := qm.Enqueue(ctx, models.QueueMessage{JobID: jobID, Type: taskType}); err != nil {
		return fmt.Errorf("failed to enqueue %s for job %d: %w", taskType, jobID, err)
	}
	logger.Debug().Int64("job_id", jobID).Str("task_type", taskType).Msg("Enqueued follow-up task")
	return nil
}
