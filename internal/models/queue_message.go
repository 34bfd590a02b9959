package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// Task types routed by the job processor
const (
	TaskCrossReference      = "crossreference"
	TaskAutoclassify        = "autoclassify"
	TaskDetectIntermittents = "detect_intermittents"
)

// QueueMessage is the structure stored in the queue.
// One message is one task against one CI job.
type QueueMessage struct {
	JobID int64  `json:"job_id"`
	Type  string `json:"type"`
}

// ToJSON serializes the message for storage
func (m *QueueMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue message: %w", err)
	}
	return data, nil
}

// QueueMessageFromJSON deserializes a message read from storage
func QueueMessageFromJSON(data []byte) (*QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue message: %w", err)
	}
	return &msg, nil
}
