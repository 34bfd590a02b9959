package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
)

type jobEntry struct {
	name         string
	schedule     string
	description  string
	handler      func() error
	cronID       cron.EntryID
	running      bool
	runs         int
	failures     int
	lastRun      *time.Time
	lastDuration time.Duration
	lastError    string
}

// Service implements interfaces.SchedulerService on robfig/cron
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a stopped scheduler
func NewService(logger arbor.ILogger) *Service {
	cl := cronLogger{logger: logger}
	return &Service{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts scheduling and waits for in-flight runs to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) RegisterJob(name string, schedule string, description string, handler func() error) error {
	if err := common.ValidateSweepSchedule(schedule); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{name: name, schedule: schedule, description: description, handler: handler}
	id, err := s.cron.AddFunc(schedule, func() { s.run(entry) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	entry.cronID = id
	s.jobs[name] = entry

	s.logger.Debug().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

func (s *Service) TriggerJob(name string) error {
	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.running {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	s.mu.Unlock()

	s.logger.Info().Str("job_name", name).Msg("Manually triggering job")
	go s.run(entry)
	return nil
}

func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return s.statusLocked(entry), nil
}

func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = s.statusLocked(entry)
	}
	return statuses
}

func (s *Service) statusLocked(entry *jobEntry) *interfaces.JobStatus {
	status := &interfaces.JobStatus{
		Name:         entry.name,
		Schedule:     entry.schedule,
		Description:  entry.description,
		LastRun:      entry.lastRun,
		LastDuration: entry.lastDuration,
		IsRunning:    entry.running,
		Runs:         entry.runs,
		Failures:     entry.failures,
		LastError:    entry.lastError,
	}
	if s.running {
		if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// run executes one invocation of entry. A panic is recorded as a failed run.
func (s *Service) run(entry *jobEntry) {
	s.mu.Lock()
	if entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	start := time.Now()
	err := s.invoke(entry)
	finished := time.Now()

	s.mu.Lock()
	entry.running = false
	entry.runs++
	entry.lastRun = &finished
	entry.lastDuration = finished.Sub(start)
	entry.lastError = ""
	if err != nil {
		entry.failures++
		entry.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", entry.name).
			Err(err).
			Dur("duration", finished.Sub(start)).
			Msg("Scheduled job failed")
		return
	}
	s.logger.Debug().
		Str("job_name", entry.name).
		Dur("duration", finished.Sub(start)).
		Msg("Scheduled job completed")
}

func (s *Service) invoke(entry *jobEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return entry.handler()
}

// cronLogger adapts arbor to cron.Logger
type cronLogger struct {
	logger arbor.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Str("fields", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Str("fields", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}
