package matching

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// SimilarityMatcher looks up classified test failures in the Index by message phrase
// and scores them against the full message
type SimilarityMatcher struct {
	index       interfaces.Index
	prefixLimit int
	logger      arbor.ILogger
}

// NewSimilarityMatcher creates the Index-backed matcher. prefixLimit bounds the phrase in characters.
func NewSimilarityMatcher(index interfaces.Index, prefixLimit int, logger arbor.ILogger) *SimilarityMatcher {
	if prefixLimit <= 0 {
		prefixLimit = 1024
	}
	return &SimilarityMatcher{index: index, prefixLimit: prefixLimit, logger: logger}
}

func (m *SimilarityMatcher) Name() string {
	return models.MatcherSimilarity
}

func (m *SimilarityMatcher) MatchAll(ctx context.Context, errs []*models.JobError) ([]Match, error) {
	if m.index == nil {
		return nil, nil
	}
	return matchEach(ctx, m.Name(), errs, m.queryBest)
}

func (m *SimilarityMatcher) queryBest(ctx context.Context, e *models.JobError) (*Candidate, error) {
	fl := e.FailureLine
	if !fl.IsTestResultWithMessage() {
		return nil, nil
	}

	docs, err := m.index.Search(ctx, models.IndexQuery{
		Test:                  fl.Test,
		Subtest:               fl.Subtest,
		Status:                fl.Status,
		Expected:              fl.Expected,
		Phrase:                truncate(fl.Message, m.prefixLimit),
		RequireClassification: true,
	})
	if err != nil {
		if errors.Is(err, models.ErrIndexDisconnected) {
			m.logger.Warn().
				Err(err).
				Int64("failure_line_id", fl.ID).
				Str("test", fl.Test).
				Msg("Index lookup failed, skipping similarity match")
			return nil, nil
		}
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	messages := make([]string, len(docs))
	for i, d := range docs {
		messages[i] = d.Message
	}

	i, ratio, ok := NewScorer(fl.Message).BestMatch(messages)
	if !ok {
		return nil, nil
	}
	return &Candidate{ClassifiedFailureID: docs[i].BestClassification, Score: ratio}, nil
}

// truncate returns the first limit characters of s
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
