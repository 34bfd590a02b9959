package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/autoclass/internal/models"
)

// Delivery is a message claimed from the queue
type Delivery struct {
	ID           string
	Message      models.QueueMessage
	ReceiveCount int
}

// QueueManager manages the persistent task queue (at-least-once delivery)
type QueueManager interface {
	Enqueue(ctx context.Context, msg models.QueueMessage) error
	EnqueueWithDelay(ctx context.Context, msg models.QueueMessage, delay time.Duration) error

	// Receive claims the next visible message. The returned function deletes it.
	Receive(ctx context.Context) (*Delivery, func() error, error)

	// Extend hides a claimed message for duration, after which it is redelivered
	Extend(ctx context.Context, messageID string, duration time.Duration) error

	Len(ctx context.Context) (int, error)
	Close() error
}
