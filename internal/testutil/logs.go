package testutil

import (
	"encoding/json"
	"sync"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// LogRecorder is an arbor writer that keeps every event written to it
type LogRecorder struct {
	mu     sync.Mutex
	events []models.LogEvent
}

var _ writers.IWriter = (*LogRecorder)(nil)

// NewRecordingLogger returns a logger that writes only to the returned recorder
func NewRecordingLogger() (arbor.ILogger, *LogRecorder) {
	rec := &LogRecorder{}
	return arbor.NewLogger().WithWriters([]writers.IWriter{rec}), rec
}

func (r *LogRecorder) WithLevel(level log.Level) writers.IWriter { return r }

func (r *LogRecorder) Write(p []byte) (int, error) {
	var ev models.LogEvent
	if err := json.Unmarshal(p, &ev); err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return len(p), nil
}

func (r *LogRecorder) GetFilePath() string { return "" }

func (r *LogRecorder) Close() error { return nil }

// Has reports whether an event with the message was written at the level
func (r *LogRecorder) Has(level log.Level, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Level == level && ev.Message == message {
			return true
		}
	}
	return false
}
