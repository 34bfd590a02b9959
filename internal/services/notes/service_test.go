package notes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/testutil"
)

func TestFullyAutoclassified(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	empty := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	ok, err := svc.FullyAutoclassified(ctx, empty.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a job without errors is never fully autoclassified")

	job := env.Job(t, 2, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.TestResult("a", "FAIL", "PASS", "m1"),
		testutil.TestResult("b", "FAIL", "PASS", "m2"),
	)
	env.Classified(t, errs[0], models.MatcherPrecise, 1)

	ok, err = svc.FullyAutoclassified(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	env.Classified(t, errs[1], models.MatcherPrecise, 1)
	ok, err = svc.FullyAutoclassified(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	truncated := env.Job(t, 3, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	terrs := env.Paired(t, truncated,
		testutil.TestResult("a", "FAIL", "PASS", "m1"),
		&models.FailureLine{Action: models.ActionTruncated},
	)
	env.Classified(t, terrs[0], models.MatcherPrecise, 1)
	env.Classified(t, terrs[1], models.MatcherPrecise, 1)
	ok, err = svc.FullyAutoclassified(ctx, truncated.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFullyVerified(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	errs := env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m1"))
	cf := env.Classified(t, errs[0], models.MatcherPrecise, 1)

	ok, err := svc.FullyVerified(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.Storage.TextLogStorage().SetBestClassification(ctx, errs[0].ID, &cf, true))
	ok, err = svc.FullyVerified(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "failure line still unverified")

	require.NoError(t, env.Storage.FailureLineStorage().SetBestClassification(ctx, errs[0].FailureLine.ID, &cf, true))
	ok, err = svc.FullyVerified(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateAutoNote(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.TestResult("a", "FAIL", "PASS", "m1"),
		testutil.TestResult("b", "FAIL", "PASS", "m2"),
	)
	cf := env.Classified(t, errs[0], models.MatcherPrecise, 1)
	matcher, err := env.Storage.MatcherStorage().RegisterMatcher(ctx, models.MatcherPrecise)
	require.NoError(t, err)
	env.Match(t, errs[1], cf, matcher.ID, 1)

	note, err := svc.CreateAutoNote(ctx, job.ID, models.ClassificationAutoclassifiedIntermittent, "")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, models.ClassificationAutoclassifiedIntermittent, note.FailureClassification)
	require.NotNil(t, note.ClassifiedFailureID)
	assert.Equal(t, cf, *note.ClassifiedFailureID)
	assert.Equal(t, models.AutoclassifierUser, note.Who())

	// Second call never duplicates
	again, err := svc.CreateAutoNote(ctx, job.ID, models.ClassificationAutoclassifiedIntermittent, "")
	require.NoError(t, err)
	assert.Nil(t, again)

	list, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateAutoNote_MixedAndBugs(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	errs := env.Paired(t, job,
		testutil.TestResult("a", "FAIL", "PASS", "m1"),
		testutil.TestResult("b", "FAIL", "PASS", "m2"),
	)
	first := env.Classified(t, errs[0], models.MatcherPrecise, 1)
	second := env.Classified(t, errs[1], models.MatcherPrecise, 1)

	require.NoError(t, env.Storage.ClassificationStorage().SetBugNumber(ctx, first, 1234))
	require.NoError(t, env.Storage.TextLogStorage().SetBestClassification(ctx, errs[0].ID, &first, true))
	require.NoError(t, env.Storage.TextLogStorage().SetBestClassification(ctx, errs[1].ID, &second, false))

	note, err := svc.CreateAutoNote(ctx, job.ID, models.ClassificationIntermittent, "sheriff")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, models.ClassificationIntermittentMixed, note.FailureClassification)
	assert.Nil(t, note.ClassifiedFailureID)
	assert.Equal(t, "sheriff", note.Who())

	maps, err := env.Storage.NoteStorage().ListBugJobMaps(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, int64(1234), maps[0].BugID)
	assert.Equal(t, "sheriff", maps[0].User)
}

func TestCreateVerifiedNote_FollowsAutoNote(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	errs := env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	cf := env.Classified(t, errs[0], models.MatcherPrecise, 1)

	auto, err := svc.CreateAutoNote(ctx, job.ID, models.ClassificationAutoclassifiedIntermittent, "")
	require.NoError(t, err)
	require.NotNil(t, auto)

	require.NoError(t, env.Storage.ClassificationStorage().SetBugNumber(ctx, cf, 77))
	require.NoError(t, env.Storage.TextLogStorage().SetBestClassification(ctx, errs[0].ID, &cf, true))

	note, err := svc.CreateVerifiedNote(ctx, job.ID, "sheriff")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, models.ClassificationIntermittent, note.FailureClassification)

	// A human note blocks any further verified note
	again, err := svc.CreateVerifiedNote(ctx, job.ID, "sheriff")
	require.NoError(t, err)
	assert.Nil(t, again)

	list, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	maps, err := env.Storage.NoteStorage().ListBugJobMaps(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, int64(77), maps[0].BugID)
}

func TestCreateAutoNote_BlockedByVerifiedNote(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Storage, env.Logger)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	env.Classified(t, errs[0], models.MatcherPrecise, 1)

	_, err := svc.CreateVerifiedNote(ctx, job.ID, "sheriff")
	require.NoError(t, err)

	note, err := svc.CreateAutoNote(ctx, job.ID, models.ClassificationAutoclassifiedIntermittent, "")
	require.NoError(t, err)
	assert.Nil(t, note)
}
