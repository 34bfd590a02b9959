package interfaces

import (
	"context"

	"github.com/ternarybob/autoclass/internal/models"
)

// JobWorker executes one task type taken from the queue
type JobWorker interface {
	// Execute processes a single task. Returned errors are classified for retry by the processor.
	Execute(ctx context.Context, msg *models.QueueMessage) error

	// GetWorkerType returns the task type this worker handles.
	// Examples: "crossreference", "autoclassify", "detect_intermittents"
	GetWorkerType() string

	// Validate validates that the queued task is compatible with this worker
	Validate(msg *models.QueueMessage) error
}
