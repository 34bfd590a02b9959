package matching

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/metrics"
	"github.com/ternarybob/autoclass/internal/models"
)

// Matcher finds existing classified failures resembling unmatched errors
type Matcher interface {
	Name() string

	// MatchAll returns at most one match per error. Errors without a paired
	// FailureLine are never matched.
	MatchAll(ctx context.Context, errs []*models.JobError) ([]Match, error)
}

// queryBest finds the best classification for one paired error, or nil
type queryBest func(ctx context.Context, e *models.JobError) (*Candidate, error)

// matchEach applies query to each paired error
func matchEach(ctx context.Context, name string, errs []*models.JobError, query queryBest) ([]Match, error) {
	defer metrics.ObserveMatcher(name, time.Now())

	var matches []Match
	for _, e := range errs {
		if !e.Paired() {
			continue
		}
		c, err := query(ctx, e)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		matches = append(matches, Match{
			Error:               e,
			ClassifiedFailureID: c.ClassifiedFailureID,
			Score:               c.Score,
			Matcher:             name,
		})
	}
	return matches, nil
}

// NewMatchers builds the autoclassify matchers in registration order
func NewMatchers(storage interfaces.StorageManager, index interfaces.Index, config *common.ClassifierConfig, logger arbor.ILogger) []Matcher {
	maxID := storage.TextLogStorage().MaxTextLogErrorID
	return []Matcher{
		NewPreciseMatcher(storage.MatchStorage(), &Window{
			Size:       config.WindowSize,
			Budget:     common.ParseDuration(config.PreciseTimeBudget, 500*time.Millisecond),
			GoodEnough: config.GoodEnoughRatio,
			MaxID:      maxID,
			Logger:     logger,
		}, logger),
		NewSimilarityMatcher(index, config.MessagePrefixLimit, logger),
		NewCrashSignatureMatcher(storage.MatchStorage(), &Window{
			Size:       config.WindowSize,
			Budget:     common.ParseDuration(config.CrashTimeBudget, 250*time.Millisecond),
			GoodEnough: config.GoodEnoughRatio,
			MaxID:      maxID,
			Logger:     logger,
		}, config.CrashOtherTestFactor, logger),
	}
}
