package tasks

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// Detector finds intermittent failures among a job's retriggers
type Detector interface {
	DetectIntermittents(ctx context.Context, jobID int64) (int, error)
}

// DetectIntermittentsWorker runs intermittent detection for one job
type DetectIntermittentsWorker struct {
	detector Detector
	logger   arbor.ILogger
}

var _ interfaces.JobWorker = (*DetectIntermittentsWorker)(nil)

// NewDetectIntermittentsWorker creates a new intermittent detection task worker
func NewDetectIntermittentsWorker(detector Detector, logger arbor.ILogger) *DetectIntermittentsWorker {
	return &DetectIntermittentsWorker{detector: detector, logger: logger}
}

func (w *DetectIntermittentsWorker) GetWorkerType() string {
	return models.TaskDetectIntermittents
}

func (w *DetectIntermittentsWorker) Validate(msg *models.QueueMessage) error {
	return validateTask(msg, models.TaskDetectIntermittents)
}

func (w *DetectIntermittentsWorker) Execute(ctx context.Context, msg *models.QueueMessage) error {
	_, err := w.detector.DetectIntermittents(ctx, msg.JobID)
	return settle(w.logger, msg, err)
}
