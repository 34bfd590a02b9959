package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/search"
	"github.com/ternarybob/autoclass/internal/testutil"
)

func newWindow(env *testutil.Env) *Window {
	return &Window{
		Size:       env.Config.Classifier.WindowSize,
		GoodEnough: env.Config.Classifier.GoodEnoughRatio,
		MaxID:      env.Storage.TextLogStorage().MaxTextLogErrorID,
		Logger:     env.Logger,
	}
}

func TestPreciseMatcher(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	old := env.Job(t, 1, "linux-debug", models.ResultTestFailed, models.StatusAutoclassified)
	oldErrs := env.Paired(t, old, testutil.TestResult("dom/a.html", "FAIL", "PASS", "assertion failed"))
	cf := env.Classified(t, oldErrs[0], models.MatcherSimilarity, 0.75)

	job := env.Job(t, 2, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.TestResult("dom/a.html", "FAIL", "PASS", "assertion failed"),
		testutil.TestResult("dom/a.html", "FAIL", "PASS", "different message"),
		testutil.Crash("dom/a.html", "mozalloc_abort"),
	)

	m := NewPreciseMatcher(env.Storage.MatchStorage(), newWindow(env), env.Logger)
	matches, err := m.MatchAll(ctx, errs)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, errs[0].ID, matches[0].Error.ID)
	assert.Equal(t, cf, matches[0].ClassifiedFailureID)
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, models.MatcherPrecise, matches[0].Matcher)
}

func TestPreciseMatcher_SkipsUnpaired(t *testing.T) {
	env := testutil.NewEnv(t)

	job := env.Job(t, 1, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Errors(t, job, testutil.TestResult("dom/a.html", "FAIL", "PASS", "m"))

	m := NewPreciseMatcher(env.Storage.MatchStorage(), newWindow(env), env.Logger)
	matches, err := m.MatchAll(context.Background(), env.Reload(t, job.ID))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCrashSignatureMatcher(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	other := env.Job(t, 1, "linux-debug", models.ResultTestFailed, models.StatusAutoclassified)
	otherErrs := env.Paired(t, other, testutil.Crash("dom/other.html", "mozalloc_abort"))
	otherCF := env.Classified(t, otherErrs[0], models.MatcherCrashSignature, 1.0)

	job := env.Job(t, 2, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.Crash("dom/a.html", "mozalloc_abort"),
		testutil.Crash("dom/a.html", models.SignatureNone),
	)

	m := NewCrashSignatureMatcher(env.Storage.MatchStorage(), newWindow(env), 0.8, env.Logger)

	matches, err := m.MatchAll(ctx, errs)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, otherCF, matches[0].ClassifiedFailureID)
	assert.InDelta(t, 0.8, matches[0].Score, 1e-9)

	// A crash on the same test wins at full score
	same := env.Job(t, 3, "linux-debug", models.ResultTestFailed, models.StatusAutoclassified)
	sameErrs := env.Paired(t, same, testutil.Crash("dom/a.html", "mozalloc_abort"))
	sameCF := env.Classified(t, sameErrs[0], models.MatcherCrashSignature, 0.9)

	matches, err = m.MatchAll(ctx, errs[:1])
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, sameCF, matches[0].ClassifiedFailureID)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-9)
}

func TestSimilarityMatcher(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	cf := int64(42)
	require.NoError(t, env.Index.Insert(ctx, &models.TestFailureDoc{
		ID: 1, JobID: 1, Test: "dom/a.html", Status: "FAIL", Expected: "PASS",
		BestClassification: cf, Message: "Timed out waiting for load event after 30 seconds",
	}))
	require.NoError(t, env.Index.Insert(ctx, &models.TestFailureDoc{
		ID: 2, JobID: 1, Test: "dom/b.html", Status: "FAIL", Expected: "PASS",
		BestClassification: 43, Message: "Timed out waiting for load event",
	}))

	job := env.Job(t, 2, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.TestResult("dom/a.html", "FAIL", "PASS", "Timed out waiting for load event"),
		testutil.TestResult("dom/c.html", "FAIL", "PASS", "Timed out waiting for load event"),
	)

	index := search.NewIndexService(env.Index, env.Logger, &env.Config.Search)
	m := NewSimilarityMatcher(index, 1024, env.Logger)

	matches, err := m.MatchAll(ctx, errs)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, errs[0].ID, matches[0].Error.ID)
	assert.Equal(t, cf, matches[0].ClassifiedFailureID)
	assert.Greater(t, matches[0].Score, 0.7)
	assert.Less(t, matches[0].Score, 1.0)
}

type downIndex struct{}

func (downIndex) Insert(context.Context, *models.TestFailureDoc) error { return models.ErrIndexDisconnected }
func (downIndex) Delete(context.Context, []int64) error                { return models.ErrIndexDisconnected }
func (downIndex) Refresh(context.Context) error                        { return models.ErrIndexDisconnected }
func (downIndex) Search(context.Context, models.IndexQuery) ([]*models.TestFailureDoc, error) {
	return nil, models.ErrIndexDisconnected
}

func TestSimilarityMatcher_IndexDown(t *testing.T) {
	env := testutil.NewEnv(t)

	job := env.Job(t, 1, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job, testutil.TestResult("dom/a.html", "FAIL", "PASS", "m"))

	matches, err := NewSimilarityMatcher(downIndex{}, 0, env.Logger).MatchAll(context.Background(), errs)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDetectors(t *testing.T) {
	errs := []*models.JobError{
		{FailureLine: testutil.TestResult("t", "FAIL", "PASS", "m")},
		{FailureLine: testutil.TestResult("t", "FAIL", "", "m")},
		{FailureLine: testutil.Crash("t", "sig")},
		{},
		{FailureLine: testutil.TestResult("u", "TIMEOUT", "PASS", "")},
	}

	assert.Equal(t, []int{0, 4}, TestFailureDetector{}.Detect(errs))
	assert.Nil(t, ManualDetector{}.Detect(errs))
}

func TestCatalog(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	c, err := RegisterCatalog(ctx, env.Storage.MatcherStorage())
	require.NoError(t, err)

	again, err := RegisterCatalog(ctx, env.Storage.MatcherStorage())
	require.NoError(t, err)

	for _, name := range CatalogNames {
		id, err := c.ID(name)
		require.NoError(t, err)
		againID, err := again.ID(name)
		require.NoError(t, err)
		assert.Equal(t, id, againID, name)
	}

	_, err = c.ID("NoSuchMatcher")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Rank(models.MatcherPrecise))
	assert.Equal(t, 2, c.Rank(models.MatcherCrashSignature))
}

func TestCatalog_BestByError(t *testing.T) {
	c := &Catalog{ranks: map[string]int{models.MatcherPrecise: 0, models.MatcherSimilarity: 1, models.MatcherCrashSignature: 2}}
	e1 := &models.JobError{TextLogError: models.TextLogError{ID: 1}}
	e2 := &models.JobError{TextLogError: models.TextLogError{ID: 2}}

	best := c.BestByError([]Match{
		{Error: e1, ClassifiedFailureID: 5, Score: 0.8, Matcher: models.MatcherPrecise},
		{Error: e1, ClassifiedFailureID: 6, Score: 0.8, Matcher: models.MatcherSimilarity},
		{Error: e2, ClassifiedFailureID: 5, Score: 0.9, Matcher: models.MatcherPrecise},
		{Error: e2, ClassifiedFailureID: 5, Score: 0.9, Matcher: models.MatcherCrashSignature},
		{Error: e2, ClassifiedFailureID: 9, Score: 0.5, Matcher: models.MatcherSimilarity},
	})

	assert.Equal(t, int64(6), best[1].ClassifiedFailureID)
	assert.Equal(t, int64(5), best[2].ClassifiedFailureID)
	assert.Equal(t, models.MatcherCrashSignature, best[2].Matcher)
}
