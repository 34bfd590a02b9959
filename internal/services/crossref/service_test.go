package crossref

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/testutil"
)

func TestCrossReference(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Config.Classifier.FailureLinesCutoff, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusPending)
	fls, _ := env.Errors(t, job,
		&models.FailureLine{Action: models.ActionGroup},
		testutil.TestResult("a", "FAIL", "PASS", "m"),
		testutil.Crash("b", "SIG"),
	)

	ok, err := svc.CrossReference(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := env.Storage.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCrossReferenced, got.AutoclassifyStatus)

	errs := env.Reload(t, job.ID)
	require.Len(t, errs, 3)
	require.NotNil(t, errs[0].FailureLine)
	assert.Equal(t, fls[1].ID, errs[0].FailureLine.ID)
	require.NotNil(t, errs[1].FailureLine)
	assert.Equal(t, fls[2].ID, errs[1].FailureLine.ID)
	assert.Nil(t, errs[2].FailureLine)
	require.NotNil(t, errs[2].Metadata)
	assert.Nil(t, errs[2].Metadata.BestClassificationID)
	assert.False(t, errs[2].Metadata.BestIsVerified)

	// Re-running is a no-op
	ok, err = svc.CrossReference(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	done := env.Job(t, 2, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	_, err = svc.CrossReference(ctx, done.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyAutoclassified)
}

func TestIngest(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, 2, env.Logger)
	ctx := context.Background()

	req := &IngestRequest{
		Job: models.Job{Signature: "linux-opt", PushID: 4, Result: models.ResultTestFailed},
		FailureLines: []*models.FailureLine{
			testutil.TestResult("a", "FAIL", "PASS", "m1"),
			testutil.TestResult("b", "FAIL", "PASS", "m2"),
			testutil.TestResult("c", "FAIL", "PASS", "m3"),
		},
		Steps: []*IngestStep{{
			TextLogStep: models.TextLogStep{Name: "mochitest"},
			Errors: []*models.TextLogError{
				{LineNumber: 1, Line: "TEST-UNEXPECTED-FAIL | a | m1"},
				{LineNumber: 2, Line: "TEST-UNEXPECTED-FAIL | b | m2"},
			},
		}},
	}
	for i, fl := range req.FailureLines {
		fl.Line = i
	}

	job, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.AutoclassifyStatus)

	stored, err := env.Storage.FailureLineStorage().ListFailureLines(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, models.ActionTruncated, stored[2].Action)

	errs, err := env.Storage.TextLogStorage().ListTextLogErrors(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, errs, 2)
}

func TestIngest_RejectsInvalidLines(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, 35, env.Logger)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, &IngestRequest{
		Job:          models.Job{Signature: "linux-opt", PushID: 4, Result: models.ResultTestFailed},
		FailureLines: []*models.FailureLine{{Action: models.ActionTestResult}},
	})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	// The job insert was rolled back
	stale, err := env.Storage.JobStorage().ListStale(ctx, models.StatusPending, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
