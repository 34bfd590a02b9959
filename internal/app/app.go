// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 9:12:31 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/metrics"
	"github.com/ternarybob/autoclass/internal/queue"
	"github.com/ternarybob/autoclass/internal/queue/workers"
	"github.com/ternarybob/autoclass/internal/services/autoclassify"
	"github.com/ternarybob/autoclass/internal/services/crossref"
	"github.com/ternarybob/autoclass/internal/services/intermittents"
	"github.com/ternarybob/autoclass/internal/services/matching"
	"github.com/ternarybob/autoclass/internal/services/notes"
	"github.com/ternarybob/autoclass/internal/services/scheduler"
	"github.com/ternarybob/autoclass/internal/services/search"
	"github.com/ternarybob/autoclass/internal/services/verification"
	"github.com/ternarybob/autoclass/internal/storage"
	"github.com/ternarybob/autoclass/internal/workers/tasks"
)

const (
	// defaultStaleAfter applies when scheduler.stale_after is unset
	defaultStaleAfter = 15 * time.Minute

	badgerGCJobName = "badger_value_log_gc"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	Storage        *storage.Storage
	StorageManager interfaces.StorageManager
	Index          interfaces.Index

	// Classification pipeline
	Catalog             *matching.Catalog
	Matchers            []matching.Matcher
	Detectors           []matching.Detector
	NoteService         *notes.Service
	CrossRefService     *crossref.Service
	AutoclassifyService *autoclassify.Service
	IntermittentService *intermittents.Service
	VerificationService *verification.Service

	// Task execution
	QueueManager interfaces.QueueManager
	JobProcessor *workers.JobProcessor

	// Periodic maintenance
	SchedulerService interfaces.SchedulerService
	Sweeper          *scheduler.Sweeper

	MetricsServer *metrics.Server
}

// New initializes the application with all dependencies.
// Background processing is not started until Start is called.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.Logger.Debug().
		Int("matchers", len(app.Matchers)).
		Int("detectors", len(app.Detectors)).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	st, err := storage.Open(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.Storage = st
	a.StorageManager = st.Manager

	a.Logger.Debug().
		Str("sqlite_path", a.Config.Storage.SQLite.Path).
		Str("badger_path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

func (a *App) initServices() error {
	var err error

	// 1. Index, rate limited and disconnected-aware
	a.Index = search.NewIndexService(a.Storage.Index, a.Logger, &a.Config.Search)
	a.Logger.Debug().Bool("enabled", a.Config.Search.Enabled).Msg("Index service initialized")

	// 2. Matcher catalog must be registered before any match is written
	a.Catalog, err = matching.RegisterCatalog(a.ctx, a.StorageManager.MatcherStorage())
	if err != nil {
		return fmt.Errorf("failed to register matchers: %w", err)
	}
	a.Matchers = matching.NewMatchers(a.StorageManager, a.Index, &a.Config.Classifier, a.Logger)
	a.Detectors = matching.NewDetectors()
	a.Logger.Debug().Strs("catalog", matching.CatalogNames).Msg("Matcher catalog registered")

	// 3. Classification services
	a.NoteService = notes.NewService(a.StorageManager, a.Logger)
	a.CrossRefService = crossref.NewService(a.StorageManager, a.Config.Classifier.FailureLinesCutoff, a.Logger)
	a.AutoclassifyService = autoclassify.NewService(
		a.StorageManager,
		a.Index,
		a.Matchers,
		a.Catalog,
		a.NoteService,
		&a.Config.Classifier,
		a.Logger,
	)
	a.IntermittentService = intermittents.NewService(
		a.StorageManager,
		a.Index,
		a.AutoclassifyService,
		a.Detectors,
		a.Catalog,
		a.Config.Classifier.CutoffRatio,
		a.Logger,
	)
	a.VerificationService = verification.NewService(
		a.StorageManager,
		a.Index,
		a.Catalog,
		a.Detectors,
		a.NoteService,
		a.Logger,
	)
	a.Logger.Debug().Msg("Classification services initialized")

	// 4. Queue and task workers
	queueConfig := queue.NewConfig(a.Config.Queue)
	queueMgr, err := queue.NewBadgerManager(a.Storage.Badger.DB(), queueConfig, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = queueMgr
	a.Logger.Debug().Str("queue_name", queueConfig.QueueName).Msg("Queue manager initialized")

	a.JobProcessor = workers.NewJobProcessor(a.QueueManager, queueConfig.RetryPolicy(), a.Logger, queueConfig.Concurrency)

	crossRefWorker := tasks.NewCrossReferenceWorker(a.CrossRefService, a.QueueManager, a.Logger)
	a.JobProcessor.RegisterExecutor(crossRefWorker)
	a.Logger.Debug().Str("task_type", crossRefWorker.GetWorkerType()).Msg("Cross-reference worker registered")

	autoclassifyWorker := tasks.NewAutoclassifyWorker(a.AutoclassifyService, a.StorageManager.JobStorage(), a.QueueManager, a.Logger)
	a.JobProcessor.RegisterExecutor(autoclassifyWorker)
	a.Logger.Debug().Str("task_type", autoclassifyWorker.GetWorkerType()).Msg("Autoclassify worker registered")

	intermittentsWorker := tasks.NewDetectIntermittentsWorker(a.IntermittentService, a.Logger)
	a.JobProcessor.RegisterExecutor(intermittentsWorker)
	a.Logger.Debug().Str("task_type", intermittentsWorker.GetWorkerType()).Msg("Intermittent detection worker registered")

	// 5. Stale job sweep
	a.SchedulerService = scheduler.NewService(a.Logger)
	a.Sweeper = scheduler.NewSweeper(
		a.StorageManager,
		a.QueueManager,
		common.ParseDuration(a.Config.Scheduler.StaleAfter, defaultStaleAfter),
		a.Logger,
	)
	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.RegisterJob(
			scheduler.SweepJobName,
			a.Config.Scheduler.SweepSchedule,
			"Re-enqueue jobs stalled before autoclassification",
			a.Sweeper.Handler(a.ctx),
		); err != nil {
			return fmt.Errorf("failed to register sweep job: %w", err)
		}

		if schedule := a.Config.Storage.Badger.GCSchedule; schedule != "" {
			if err := a.SchedulerService.RegisterJob(
				badgerGCJobName,
				schedule,
				"Reclaim badger value log space from deleted queue messages and Index documents",
				func() error {
					_, err := a.Storage.Badger.CollectGarbage()
					return err
				},
			); err != nil {
				return fmt.Errorf("failed to register badger gc job: %w", err)
			}
		}
	}

	if a.Config.Metrics.Enabled {
		a.MetricsServer = metrics.NewServer(a.Config.Metrics.Address, a.Logger)
	}

	return nil
}

// Start launches the job processor and the scheduler
func (a *App) Start() error {
	a.JobProcessor.Start()
	a.Logger.Debug().Msg("Job processor started")

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler service: %w", err)
		}
	}
	return nil
}

// Autoclassify runs the autoclassifier for one job directly, bypassing the queue
func (a *App) Autoclassify(ctx context.Context, jobID int64) error {
	return a.AutoclassifyService.Classify(ctx, jobID)
}

// DetectIntermittents runs intermittent detection for one job directly, bypassing the queue
func (a *App) DetectIntermittents(ctx context.Context, jobID int64) (int, error) {
	return a.IntermittentService.DetectIntermittents(ctx, jobID)
}

// Close stops background work and closes all stores
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.JobProcessor != nil {
		a.JobProcessor.Stop()
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
