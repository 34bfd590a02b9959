package matching

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// CrashSignatureMatcher matches crashes against stored matches with the same signature.
// Matches on the same test are preferred; other tests score at otherTestFactor.
type CrashSignatureMatcher struct {
	store           interfaces.MatchStorage
	window          *Window
	otherTestFactor float64
	logger          arbor.ILogger
}

// NewCrashSignatureMatcher creates the crash signature matcher
func NewCrashSignatureMatcher(store interfaces.MatchStorage, window *Window, otherTestFactor float64, logger arbor.ILogger) *CrashSignatureMatcher {
	if otherTestFactor <= 0 {
		otherTestFactor = 0.8
	}
	return &CrashSignatureMatcher{store: store, window: window, otherTestFactor: otherTestFactor, logger: logger}
}

func (m *CrashSignatureMatcher) Name() string {
	return models.MatcherCrashSignature
}

func (m *CrashSignatureMatcher) MatchAll(ctx context.Context, errs []*models.JobError) ([]Match, error) {
	return matchEach(ctx, m.Name(), errs, m.queryBest)
}

func (m *CrashSignatureMatcher) queryBest(ctx context.Context, e *models.JobError) (*Candidate, error) {
	fl := e.FailureLine
	if !fl.HasCrashSignature() {
		return nil, nil
	}

	sameTest := models.CrashQuery{JobID: e.JobID, Signature: fl.Signature, Test: fl.Test, SameTest: true}
	anyTest := models.CrashQuery{JobID: e.JobID, Signature: fl.Signature}

	return m.window.Best(ctx,
		Scaled{Query: func(ctx context.Context, lower, upper int64) (*models.MatchCandidate, error) {
			return m.store.BestCrashMatch(ctx, sameTest, lower, upper)
		}},
		Scaled{Query: func(ctx context.Context, lower, upper int64) (*models.MatchCandidate, error) {
			return m.store.BestCrashMatch(ctx, anyTest, lower, upper)
		}, Factor: m.otherTestFactor},
	)
}
