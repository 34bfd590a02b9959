// -----------------------------------------------------------------------
// Job Processor - Routes tasks from queue to registered workers
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/metrics"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/queue"
)

// JobProcessor pulls tasks from the queue and routes them to registered workers by task type.
// A failed task is redelivered after a jittered backoff while the retry policy allows it.
type JobProcessor struct {
	queueMgr    interfaces.QueueManager
	executors   map[string]interfaces.JobWorker // Workers keyed by task type
	retry       *queue.RetryPolicy
	logger      arbor.ILogger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
	concurrency int // Number of concurrent worker goroutines
}

// NewJobProcessor creates a new job processor.
// The concurrency parameter controls how many tasks can be processed in parallel.
func NewJobProcessor(queueMgr interfaces.QueueManager, retry *queue.RetryPolicy, logger arbor.ILogger, concurrency int) *JobProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	if concurrency < 1 {
		concurrency = 1
	}
	if retry == nil {
		retry = queue.NewRetryPolicy()
	}

	return &JobProcessor{
		queueMgr:    queueMgr,
		executors:   make(map[string]interfaces.JobWorker),
		retry:       retry,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		concurrency: concurrency,
	}
}

// RegisterExecutor registers a worker for its task type
func (jp *JobProcessor) RegisterExecutor(worker interfaces.JobWorker) {
	taskType := worker.GetWorkerType()
	jp.executors[taskType] = worker
	jp.logger.Debug().
		Str("task_type", taskType).
		Msg("Task worker registered")
}

// Start starts the job processor.
// This should be called AFTER all workers are registered.
func (jp *JobProcessor) Start() {
	jp.mu.Lock()
	defer jp.mu.Unlock()

	if jp.running {
		jp.logger.Warn().Msg("Job processor already running")
		return
	}

	jp.running = true
	jp.logger.Info().
		Int("concurrency", jp.concurrency).
		Msg("Starting job processor")

	for i := 0; i < jp.concurrency; i++ {
		jp.wg.Add(1)
		go jp.processJobs(i)
	}
}

// Stop stops the job processor gracefully
func (jp *JobProcessor) Stop() {
	jp.mu.Lock()
	if !jp.running {
		jp.mu.Unlock()
		return
	}
	jp.running = false
	jp.mu.Unlock()

	jp.logger.Info().Msg("Stopping job processor...")
	jp.cancel()
	jp.wg.Wait()
	jp.logger.Info().Msg("Job processor stopped")
}

// Backoff configuration for idle polling
const (
	minBackoff = 100 * time.Millisecond // Initial backoff when queue is empty
	maxBackoff = 5 * time.Second        // Maximum backoff duration
)

// processJobs is the main processing loop of one worker goroutine
func (jp *JobProcessor) processJobs(workerID int) {
	defer jp.wg.Done()

	jp.logger.Debug().
		Int("worker_id", workerID).
		Msg("Job processor worker started")

	currentBackoff := minBackoff

	for {
		select {
		case <-jp.ctx.Done():
			jp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Job processor worker stopping")
			return
		default:
			if jp.processNextJob(workerID) {
				currentBackoff = minBackoff
				continue
			}

			select {
			case <-jp.ctx.Done():
				return
			case <-time.After(currentBackoff):
			}

			currentBackoff = currentBackoff * 2
			if currentBackoff > maxBackoff {
				currentBackoff = maxBackoff
			}
		}
	}
}

// getStackTrace returns a formatted stack trace for panic debugging
func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// processNextJob runs the next visible task.
// Returns true if a task was received, false if none was available.
func (jp *JobProcessor) processNextJob(workerID int) bool {
	ctx, cancel := context.WithTimeout(jp.ctx, 1*time.Second)
	defer cancel()

	delivery, deleteFn, err := jp.queueMgr.Receive(ctx)
	if err != nil {
		return false
	}

	msg := delivery.Message
	logger := jp.logger.WithCorrelationId(fmt.Sprintf("%s-%d", msg.Type, msg.JobID))
	start := time.Now()

	logger.Info().
		Int64("job_id", msg.JobID).
		Str("task_type", msg.Type).
		Int("worker_id", workerID).
		Int("delivery", delivery.ReceiveCount).
		Msg("Task started")

	err = jp.execute(msg, logger)
	if err == nil {
		logger.Info().
			Int64("job_id", msg.JobID).
			Str("task_type", msg.Type).
			Dur("duration", time.Since(start)).
			Msg("Task completed")
		jp.ack(deleteFn, logger)
		return true
	}

	if jp.retry.ShouldRetry(delivery.ReceiveCount, err) {
		backoff := jp.retry.CalculateBackoff(delivery.ReceiveCount - 1)
		logger.Warn().
			Err(err).
			Int64("job_id", msg.JobID).
			Str("task_type", msg.Type).
			Int("delivery", delivery.ReceiveCount).
			Dur("backoff", backoff).
			Msg("Task failed, retrying after backoff")
		metrics.TaskRetriesTotal.WithLabelValues(msg.Type).Inc()

		if extendErr := jp.queueMgr.Extend(jp.ctx, delivery.ID, backoff); extendErr != nil {
			logger.Error().Err(extendErr).Msg("Failed to schedule task retry")
		}
		return true
	}

	logger.Error().
		Err(err).
		Int64("job_id", msg.JobID).
		Str("task_type", msg.Type).
		Int("delivery", delivery.ReceiveCount).
		Bool("retryable", queue.IsRetryable(err)).
		Dur("duration", time.Since(start)).
		Msg("Task failed")
	jp.ack(deleteFn, logger)
	return true
}

// execute validates and runs msg, converting a worker panic into a non-retryable error
func (jp *JobProcessor) execute(msg models.QueueMessage, logger arbor.ILogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := getStackTrace()
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", stack).
				Msg("Recovered from panic in task")
			err = &queue.PanicError{Value: r, Stack: stack}
		}
	}()

	worker, ok := jp.executors[msg.Type]
	if !ok {
		return queue.NonRetryable(fmt.Errorf("no worker registered for task type: %s", msg.Type))
	}

	if err := worker.Validate(&msg); err != nil {
		return queue.NonRetryable(fmt.Errorf("invalid task: %w", err))
	}

	return worker.Execute(jp.ctx, &msg)
}

func (jp *JobProcessor) ack(deleteFn func() error, logger arbor.ILogger) {
	if err := deleteFn(); err != nil {
		logger.Error().Err(err).Msg("Failed to delete message from queue")
	}
}
