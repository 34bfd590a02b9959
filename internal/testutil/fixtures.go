// Package testutil provides store fixtures shared by service tests
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/storage/badger"
	"github.com/ternarybob/autoclass/internal/storage/sqlite"
)

// Env is an isolated pair of stores under t.TempDir()
type Env struct {
	Storage interfaces.StorageManager
	Badger  *badger.BadgerDB
	Index   interfaces.Index
	Config  *common.Config
	Logger  arbor.ILogger
}

// NewEnv opens fresh SQLite and Badger stores closed at test cleanup
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()

	config := common.NewDefaultConfig()
	config.Storage.SQLite.Path = filepath.Join(dir, "autoclass.db")
	config.Storage.SQLite.WALMode = false
	config.Storage.Badger.Path = filepath.Join(dir, "badger")

	manager, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	bdb, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	return &Env{
		Storage: manager,
		Badger:  bdb,
		Index:   badger.NewIndexStorage(bdb, logger),
		Config:  config,
		Logger:  logger,
	}
}

// Job creates a job in status with the given push, signature and result
func (e *Env) Job(t *testing.T, push int64, signature, result string, status models.AutoclassifyStatus) *models.Job {
	t.Helper()
	job := &models.Job{Signature: signature, PushID: push, Result: result, AutoclassifyStatus: status}
	require.NoError(t, e.Storage.JobStorage().CreateJob(context.Background(), job))
	return job
}

// TestResult returns an unsaved test_result failure line
func TestResult(test, status, expected, message string) *models.FailureLine {
	return &models.FailureLine{Action: models.ActionTestResult, Test: test, Status: status, Expected: expected, Message: message}
}

// Crash returns an unsaved crash failure line
func Crash(test, signature string) *models.FailureLine {
	return &models.FailureLine{Action: models.ActionCrash, Test: test, Signature: signature}
}

// Errors stores lines for job plus one TextLogError per line, in order,
// and returns the stored errors without pairing them
func (e *Env) Errors(t *testing.T, job *models.Job, lines ...*models.FailureLine) ([]*models.FailureLine, []*models.TextLogError) {
	t.Helper()
	ctx := context.Background()

	for i, fl := range lines {
		fl.JobID = job.ID
		fl.Line = i
	}
	if len(lines) > 0 {
		require.NoError(t, e.Storage.FailureLineStorage().CreateFailureLines(ctx, lines))
	}

	step := &models.TextLogStep{JobID: job.ID, Name: "run-tests", Result: "testfailed"}
	require.NoError(t, e.Storage.TextLogStorage().CreateStep(ctx, step))

	tles := make([]*models.TextLogError, 0, len(lines))
	for i, fl := range lines {
		tles = append(tles, &models.TextLogError{StepID: step.ID, LineNumber: 100 + i, Line: errorLine(fl)})
	}
	if len(tles) > 0 {
		require.NoError(t, e.Storage.TextLogStorage().CreateTextLogErrors(ctx, tles))
	}
	return lines, tles
}

// Paired stores lines and errors like Errors and pairs them one to one
func (e *Env) Paired(t *testing.T, job *models.Job, lines ...*models.FailureLine) []*models.JobError {
	t.Helper()
	ctx := context.Background()

	fls, tles := e.Errors(t, job, lines...)
	for i, tle := range tles {
		require.NoError(t, e.Storage.TextLogStorage().UpsertMetadata(ctx, &models.TextLogErrorMetadata{
			TextLogErrorID: tle.ID,
			FailureLineID:  &fls[i].ID,
		}))
	}
	errs, err := e.Storage.TextLogStorage().ListJobErrors(ctx, job.ID)
	require.NoError(t, err)
	return errs
}

// Classified creates a classified failure and a stored match of je to it by matcher
func (e *Env) Classified(t *testing.T, je *models.JobError, matcher string, score float64) int64 {
	t.Helper()
	ctx := context.Background()

	m, err := e.Storage.MatcherStorage().RegisterMatcher(ctx, matcher)
	require.NoError(t, err)
	cf, err := e.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)

	e.Match(t, je, cf.ID, m.ID, score)
	return cf.ID
}

// Match stores a TextLogErrorMatch and its FailureMatch mirror and promotes cf as best classification
func (e *Env) Match(t *testing.T, je *models.JobError, cfID, matcherID int64, score float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.Storage.MatchStorage().InsertTextLogErrorMatch(ctx, &models.TextLogErrorMatch{
		TextLogErrorID: je.ID, ClassifiedFailureID: cfID, MatcherID: matcherID, Score: score,
	}))
	_, err := e.Storage.TextLogStorage().PromoteBestClassification(ctx, je.ID, cfID)
	require.NoError(t, err)

	if je.FailureLine != nil {
		require.NoError(t, e.Storage.MatchStorage().InsertFailureMatch(ctx, &models.FailureMatch{
			FailureLineID: je.FailureLine.ID, ClassifiedFailureID: cfID, MatcherID: matcherID, Score: score,
		}))
		_, err := e.Storage.FailureLineStorage().PromoteBestClassification(ctx, je.FailureLine.ID, cfID)
		require.NoError(t, err)
	}
}

// Reload returns the current state of the job's errors
func (e *Env) Reload(t *testing.T, jobID int64) []*models.JobError {
	t.Helper()
	errs, err := e.Storage.TextLogStorage().ListJobErrors(context.Background(), jobID)
	require.NoError(t, err)
	return errs
}

func errorLine(fl *models.FailureLine) string {
	switch fl.Action {
	case models.ActionCrash:
		return "PROCESS-CRASH | " + fl.Signature + " | application crashed"
	case models.ActionTestResult:
		return "TEST-UNEXPECTED-" + fl.Status + " | " + fl.Test + " | " + fl.Message
	}
	return fl.Message
}
