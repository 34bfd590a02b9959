package tasks

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/crossref"
)

// CrossReferenceWorker pairs a job's failure lines with its errors and queues autoclassification
type CrossReferenceWorker struct {
	crossref *crossref.Service
	queueMgr interfaces.QueueManager
	logger   arbor.ILogger
}

var _ interfaces.JobWorker = (*CrossReferenceWorker)(nil)

// NewCrossReferenceWorker creates a new cross-reference task worker
func NewCrossReferenceWorker(service *crossref.Service, queueMgr interfaces.QueueManager, logger arbor.ILogger) *CrossReferenceWorker {
	return &CrossReferenceWorker{crossref: service, queueMgr: queueMgr, logger: logger}
}

func (w *CrossReferenceWorker) GetWorkerType() string {
	return models.TaskCrossReference
}

func (w *CrossReferenceWorker) Validate(msg *models.QueueMessage) error {
	return validateTask(msg, models.TaskCrossReference)
}

func (w *CrossReferenceWorker) Execute(ctx context.Context, msg *models.QueueMessage) error {
	advanced, err := w.crossref.CrossReference(ctx, msg.JobID)
	if err != nil {
		return settle(w.logger, msg, err)
	}
	if !advanced {
		return nil
	}
	return enqueueNext(ctx, w.queueMgr, w.logger, msg.JobID, models.TaskAutoclassify)
}
