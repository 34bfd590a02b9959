package autoclassify

import (
	"context"
	"errors"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/matching"
	"github.com/ternarybob/autoclass/internal/services/notes"
	"github.com/ternarybob/autoclass/internal/services/search"
	"github.com/ternarybob/autoclass/internal/testutil"
)

func newService(t *testing.T, env *testutil.Env, matchers ...matching.Matcher) *Service {
	t.Helper()
	catalog, err := matching.RegisterCatalog(context.Background(), env.Storage.MatcherStorage())
	require.NoError(t, err)

	index := search.NewIndexService(env.Index, env.Logger, &env.Config.Search)
	if len(matchers) == 0 {
		matchers = matching.NewMatchers(env.Storage, index, &env.Config.Classifier, env.Logger)
	}
	return NewService(env.Storage, index, matchers, catalog, notes.NewService(env.Storage, env.Logger),
		&env.Config.Classifier, env.Logger)
}

// fakeMatcher returns fixed scores for errors by test name
type fakeMatcher struct {
	name   string
	scores map[string]matching.Candidate
	err    error
	seen   []int64
}

func (f *fakeMatcher) Name() string { return f.name }

func (f *fakeMatcher) MatchAll(ctx context.Context, errs []*models.JobError) ([]matching.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []matching.Match
	for _, e := range errs {
		f.seen = append(f.seen, e.ID)
		if !e.Paired() {
			continue
		}
		if c, ok := f.scores[e.FailureLine.Test]; ok {
			out = append(out, matching.Match{Error: e, ClassifiedFailureID: c.ClassifiedFailureID, Score: c.Score, Matcher: f.name})
		}
	}
	return out, nil
}

func status(t *testing.T, env *testutil.Env, jobID int64) models.AutoclassifyStatus {
	t.Helper()
	job, err := env.Storage.JobStorage().GetJob(context.Background(), jobID)
	require.NoError(t, err)
	return job.AutoclassifyStatus
}

func TestClassify_PreciseMatchFromHistory(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	old := env.Job(t, 1, "linux-debug", models.ResultTestFailed, models.StatusAutoclassified)
	oldErrs := env.Paired(t, old, testutil.TestResult("dom/a.html", "FAIL", "PASS", "assertion failed"))
	cf := env.Classified(t, oldErrs[0], models.MatcherPrecise, 1)

	job := env.Job(t, 2, "linux-debug", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Paired(t, job, testutil.TestResult("dom/a.html", "FAIL", "PASS", "assertion failed"))

	require.NoError(t, svc.Classify(ctx, job.ID))
	assert.Equal(t, models.StatusAutoclassified, status(t, env, job.ID))

	errs := env.Reload(t, job.ID)
	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].BestClassificationID())
	assert.Equal(t, cf, *errs[0].BestClassificationID())
	assert.False(t, errs[0].Metadata.BestIsVerified)
	require.NotNil(t, errs[0].FailureLine.BestClassificationID)
	assert.Equal(t, cf, *errs[0].FailureLine.BestClassificationID)

	matches, err := env.Storage.MatchStorage().ListFailureMatches(ctx, errs[0].FailureLine.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	noteList, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, noteList, 1)
	assert.Equal(t, models.ClassificationAutoclassifiedIntermittent, noteList[0].FailureClassification)

	// The promoted line is now searchable
	docs, err := env.Index.Search(ctx, models.IndexQuery{
		Test: "dom/a.html", Status: "FAIL", Expected: "PASS", Phrase: "assertion", RequireClassification: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, errs[0].FailureLine.ID, docs[0].ID)
	assert.Equal(t, cf, docs[0].BestClassification)
}

func TestClassify_Preconditions(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	pass := env.Job(t, 1, "sig", models.ResultSuccess, models.StatusCrossReferenced)
	assert.NoError(t, svc.Classify(ctx, pass.ID))
	assert.Equal(t, models.StatusCrossReferenced, status(t, env, pass.ID))

	pending := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusPending)
	assert.ErrorIs(t, svc.Classify(ctx, pending.ID), models.ErrInvalidStatus)
	assert.Equal(t, models.StatusPending, status(t, env, pending.ID))

	done := env.Job(t, 1, "sig", models.ResultBusted, models.StatusAutoclassified)
	assert.ErrorIs(t, svc.Classify(ctx, done.ID), models.ErrAlreadyAutoclassified)

	assert.ErrorIs(t, svc.Classify(ctx, 9999), models.ErrNotFound)
}

func TestClassify_AlreadyAutoclassifiedLogsError(t *testing.T) {
	env := testutil.NewEnv(t)
	logger, rec := testutil.NewRecordingLogger()
	env.Logger = logger
	svc := newService(t, env)

	done := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	assert.ErrorIs(t, svc.Classify(context.Background(), done.ID), models.ErrAlreadyAutoclassified)
	assert.True(t, rec.Has(log.ErrorLevel, "Autoclassify called for already autoclassified job"))
}

func TestClassify_NoErrorsAndUnpaired(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	empty := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	require.NoError(t, svc.Classify(ctx, empty.ID))
	assert.Equal(t, models.StatusAutoclassified, status(t, env, empty.ID))

	unpaired := env.Job(t, 2, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Errors(t, unpaired, testutil.TestResult("a", "FAIL", "PASS", "m"))
	require.NoError(t, svc.Classify(ctx, unpaired.ID))
	assert.Equal(t, models.StatusSkipped, status(t, env, unpaired.ID))
}

func TestClassify_GoodEnoughStopsLaterMatchers(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job,
		testutil.TestResult("strong", "FAIL", "PASS", "m1"),
		testutil.TestResult("weak", "FAIL", "PASS", "m2"),
	)
	cfA, err := env.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)
	cfB, err := env.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)

	first := &fakeMatcher{name: models.MatcherPrecise, scores: map[string]matching.Candidate{
		"strong": {ClassifiedFailureID: cfA.ID, Score: 0.95},
		"weak":   {ClassifiedFailureID: cfA.ID, Score: 0.5},
	}}
	second := &fakeMatcher{name: models.MatcherSimilarity, scores: map[string]matching.Candidate{
		"strong": {ClassifiedFailureID: cfB.ID, Score: 1.0},
		"weak":   {ClassifiedFailureID: cfB.ID, Score: 0.7},
	}}
	svc := newService(t, env, first, second)

	require.NoError(t, svc.Classify(ctx, job.ID))
	assert.Equal(t, []int64{errs[1].ID}, second.seen)

	got := env.Reload(t, job.ID)
	require.NotNil(t, got[0].BestClassificationID())
	assert.Equal(t, cfA.ID, *got[0].BestClassificationID())
	// 0.7 meets the inclusive cutoff
	require.NotNil(t, got[1].BestClassificationID())
	assert.Equal(t, cfB.ID, *got[1].BestClassificationID())

	weakMatches, err := env.Storage.MatchStorage().ListTextLogErrorMatches(ctx, errs[1].ID)
	require.NoError(t, err)
	assert.Len(t, weakMatches, 2)
}

func TestClassify_BelowCutoffNotPromoted(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	errs := env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	cf, err := env.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)

	svc := newService(t, env, &fakeMatcher{name: models.MatcherSimilarity, scores: map[string]matching.Candidate{
		"a": {ClassifiedFailureID: cf.ID, Score: 0.69},
	}})
	require.NoError(t, svc.Classify(ctx, job.ID))

	got := env.Reload(t, job.ID)
	assert.Nil(t, got[0].BestClassificationID())
	matches, err := env.Storage.MatchStorage().ListTextLogErrorMatches(ctx, errs[0].ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	noteList, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, noteList)
}

func TestClassify_MatcherFailureMarksFailed(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))

	boom := errors.New("database gone")
	svc := newService(t, env, &fakeMatcher{name: models.MatcherPrecise, err: boom})

	err := svc.Classify(ctx, job.ID)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, models.ErrClassifyFailed)
	assert.Equal(t, models.StatusFailed, status(t, env, job.ID))

	// A retry can only hit the status check
	assert.ErrorIs(t, svc.Classify(ctx, job.ID), models.ErrInvalidStatus)
}

func TestRematch_IsIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusAutoclassified)
	errs := env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	cf, err := env.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)

	fake := &fakeMatcher{name: models.MatcherPrecise, scores: map[string]matching.Candidate{
		"a": {ClassifiedFailureID: cf.ID, Score: 1},
	}}
	svc := newService(t, env, fake)

	require.NoError(t, svc.Rematch(ctx, job.ID))
	require.NoError(t, svc.Rematch(ctx, job.ID))

	matches, err := env.Storage.MatchStorage().ListTextLogErrorMatches(ctx, errs[0].ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	// Second run found nothing unmatched
	assert.Len(t, fake.seen, 1)
	assert.Equal(t, models.StatusAutoclassified, status(t, env, job.ID))

	noteList, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, noteList, 1)
}

func TestClassify_HumanNoteSuppressesAutoNote(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	job := env.Job(t, 1, "sig", models.ResultTestFailed, models.StatusCrossReferenced)
	env.Paired(t, job, testutil.TestResult("a", "FAIL", "PASS", "m"))
	require.NoError(t, env.Storage.NoteStorage().CreateJobNote(ctx, &models.JobNote{
		JobID: job.ID, FailureClassification: models.ClassificationIntermittent, User: "sheriff", Text: "known",
	}))
	cf, err := env.Storage.ClassificationStorage().CreateClassifiedFailure(ctx, nil)
	require.NoError(t, err)

	svc := newService(t, env, &fakeMatcher{name: models.MatcherPrecise, scores: map[string]matching.Candidate{
		"a": {ClassifiedFailureID: cf.ID, Score: 1},
	}})
	require.NoError(t, svc.Classify(ctx, job.ID))

	noteList, err := env.Storage.NoteStorage().ListJobNotes(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, noteList, 1)
	assert.Equal(t, "sheriff", noteList[0].User)
}
