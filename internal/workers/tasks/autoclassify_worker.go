package tasks

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// Classifier autoclassifies one job
type Classifier interface {
	Classify(ctx context.Context, jobID int64) error
}

// AutoclassifyWorker runs the autoclassifier and then queues intermittent detection
type AutoclassifyWorker struct {
	classifier Classifier
	jobs       interfaces.JobStorage
	queueMgr   interfaces.QueueManager
	logger     arbor.ILogger
}

var _ interfaces.JobWorker = (*AutoclassifyWorker)(nil)

// NewAutoclassifyWorker creates a new autoclassify task worker
func NewAutoclassifyWorker(classifier Classifier, jobs interfaces.JobStorage, queueMgr interfaces.QueueManager, logger arbor.ILogger) *AutoclassifyWorker {
	return &AutoclassifyWorker{classifier: classifier, jobs: jobs, queueMgr: queueMgr, logger: logger}
}

func (w *AutoclassifyWorker) GetWorkerType() string {
	return models.TaskAutoclassify
}

func (w *AutoclassifyWorker) Validate(msg *models.QueueMessage) error {
	return validateTask(msg, models.TaskAutoclassify)
}

func (w *AutoclassifyWorker) Execute(ctx context.Context, msg *models.QueueMessage) error {
	if err := w.classifier.Classify(ctx, msg.JobID); err != nil {
		return settle(w.logger, msg, err)
	}

	job, err := w.jobs.GetJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.AutoclassifyStatus != models.StatusAutoclassified {
		return nil
	}
	return enqueueNext(ctx, w.queueMgr, w.logger, msg.JobID, models.TaskDetectIntermittents)
}
