package interfaces

import "time"

// JobStatus is a point-in-time view of one scheduled maintenance job
type JobStatus struct {
	Name         string
	Schedule     string
	Description  string
	LastRun      *time.Time
	LastDuration time.Duration
	NextRun      *time.Time
	IsRunning    bool
	Runs         int
	Failures     int
	LastError    string
}

// SchedulerService runs periodic maintenance jobs (stale job sweep, store GC) on cron schedules
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool

	// RegisterJob adds a job. A run still in progress when the next tick fires is skipped.
	RegisterJob(name string, schedule string, description string, handler func() error) error

	// TriggerJob runs a registered job immediately in the background
	TriggerJob(name string) error

	GetJobStatus(name string) (*JobStatus, error)
	GetAllJobStatuses() map[string]*JobStatus
}
