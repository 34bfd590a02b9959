package intermittents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/autoclassify"
	"github.com/ternarybob/autoclass/internal/services/matching"
	"github.com/ternarybob/autoclass/internal/services/notes"
	"github.com/ternarybob/autoclass/internal/services/search"
	"github.com/ternarybob/autoclass/internal/testutil"
)

func newService(t *testing.T, env *testutil.Env) *Service {
	t.Helper()
	ctx := context.Background()

	catalog, err := matching.RegisterCatalog(ctx, env.Storage.MatcherStorage())
	require.NoError(t, err)
	index := search.NewIndexService(env.Index, env.Logger, &env.Config.Search)
	classifier := autoclassify.NewService(env.Storage, index,
		matching.NewMatchers(env.Storage, index, &env.Config.Classifier, env.Logger),
		catalog, notes.NewService(env.Storage, env.Logger), &env.Config.Classifier, env.Logger)

	return NewService(env.Storage, index, classifier, matching.NewDetectors(), catalog,
		env.Config.Classifier.CutoffRatio, env.Logger)
}

func TestDetectIntermittents_PromotesAndRematches(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	job := env.Job(t, 9, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Paired(t, job, testutil.TestResult("dom/a.html", "FAIL", "PASS", "flaky timeout"))

	retrigger := env.Job(t, 9, "linux-debug", models.ResultTestFailed, models.StatusAutoclassified)
	siblingErrs := env.Paired(t, retrigger,
		testutil.TestResult("dom/a.html", "FAIL", "PASS", "flaky timeout"),
		testutil.Crash("dom/b.html", "SIG"),
	)
	env.Job(t, 9, "linux-debug", models.ResultSuccess, models.StatusAutoclassified)

	n, err := svc.DetectIntermittents(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := env.Reload(t, retrigger.ID)
	require.NotNil(t, got[0].BestClassificationID())
	cf := *got[0].BestClassificationID()
	assert.Nil(t, got[1].BestClassificationID(), "crash lines are not promoted")

	matches, err := env.Storage.MatchStorage().ListTextLogErrorMatches(ctx, siblingErrs[0].ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Score)

	// The original job now matches the minted classification
	mine := env.Reload(t, job.ID)
	require.NotNil(t, mine[0].BestClassificationID())
	assert.Equal(t, cf, *mine[0].BestClassificationID())

	cfRow, err := env.Storage.ClassificationStorage().GetClassifiedFailure(ctx, cf)
	require.NoError(t, err)
	assert.Nil(t, cfRow.BugNumber)
}

func TestDetectIntermittents_RequiresPassingSibling(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	job := env.Job(t, 3, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	retrigger := env.Job(t, 3, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	env.Paired(t, retrigger, testutil.TestResult("a", "FAIL", "PASS", "m"))

	n, err := svc.DetectIntermittents(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, env.Reload(t, retrigger.ID)[0].BestClassificationID())

	lonely := env.Job(t, 4, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	n, err = svc.DetectIntermittents(ctx, lonely.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDetectIntermittents_SkipsIgnoredAndMatched(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	job := env.Job(t, 5, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	retrigger := env.Job(t, 5, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	errs := env.Paired(t, retrigger,
		testutil.TestResult("ignored", "FAIL", "PASS", "noise"),
		testutil.TestResult("matched", "FAIL", "PASS", "known"),
	)
	env.Job(t, 5, "sig", models.ResultSuccess, models.StatusAutoclassified)

	require.NoError(t, env.Storage.FailureLineStorage().SetBestClassification(ctx, errs[0].FailureLine.ID, nil, true))
	require.NoError(t, env.Storage.TextLogStorage().SetBestClassification(ctx, errs[0].ID, nil, true))
	env.Classified(t, errs[1], models.MatcherPrecise, 1)

	n, err := svc.DetectIntermittents(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, env.Reload(t, retrigger.ID)[0].BestClassificationID())
}
