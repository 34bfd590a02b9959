package matching

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// PreciseMatcher matches test results against stored matches whose failure line
// has identical test, subtest, status, expected and message
type PreciseMatcher struct {
	store  interfaces.MatchStorage
	window *Window
	logger arbor.ILogger
}

// NewPreciseMatcher creates the exact-attribute test result matcher
func NewPreciseMatcher(store interfaces.MatchStorage, window *Window, logger arbor.ILogger) *PreciseMatcher {
	return &PreciseMatcher{store: store, window: window, logger: logger}
}

func (m *PreciseMatcher) Name() string {
	return models.MatcherPrecise
}

func (m *PreciseMatcher) MatchAll(ctx context.Context, errs []*models.JobError) ([]Match, error) {
	return matchEach(ctx, m.Name(), errs, m.queryBest)
}

func (m *PreciseMatcher) queryBest(ctx context.Context, e *models.JobError) (*Candidate, error) {
	fl := e.FailureLine
	if !fl.IsTestResultWithMessage() {
		return nil, nil
	}

	m.logger.Debug().Int64("failure_line_id", fl.ID).Msg("Looking for test match")

	q := models.PreciseQuery{
		JobID:    e.JobID,
		Test:     fl.Test,
		Subtest:  fl.Subtest,
		Status:   fl.Status,
		Expected: fl.Expected,
		Message:  fl.Message,
	}
	best, err := m.window.Best(ctx, Scaled{Query: func(ctx context.Context, lower, upper int64) (*models.MatchCandidate, error) {
		return m.store.BestPreciseMatch(ctx, q, lower, upper)
	}})
	if err != nil || best == nil {
		return nil, err
	}

	// An identical failure line is a perfect match whatever the stored score was
	best.Score = 1.0
	return best, nil
}
