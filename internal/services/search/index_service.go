package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"golang.org/x/time/rate"
)

// IndexService guards an Index with a per-call timeout and a rate limit.
// Every failure, including a timeout, surfaces as models.ErrIndexDisconnected.
type IndexService struct {
	backing    interfaces.Index
	limiter    *rate.Limiter
	timeout    time.Duration
	maxResults int
	logger     arbor.ILogger
}

// NewIndexServiceWithLimits creates the guarded Index service
func NewIndexServiceWithLimits(backing interfaces.Index, logger arbor.ILogger, config *common.SearchConfig) *IndexService {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	return &IndexService{
		backing:    backing,
		limiter:    rate.NewLimiter(limit, burst),
		timeout:    common.ParseDuration(config.Timeout, 2*time.Second),
		maxResults: maxResults,
		logger:     logger,
	}
}

func (s *IndexService) Insert(ctx context.Context, doc *models.TestFailureDoc) error {
	return s.call(ctx, "insert", func(ctx context.Context) error {
		return s.backing.Insert(ctx, doc)
	})
}

func (s *IndexService) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.call(ctx, "delete", func(ctx context.Context) error {
		return s.backing.Delete(ctx, ids)
	})
}

func (s *IndexService) Search(ctx context.Context, query models.IndexQuery) ([]*models.TestFailureDoc, error) {
	if query.Limit <= 0 || query.Limit > s.maxResults {
		query.Limit = s.maxResults
	}

	var docs []*models.TestFailureDoc
	err := s.call(ctx, "search", func(ctx context.Context) error {
		var err error
		docs, err = s.backing.Search(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(docs) > 1 {
		s.logger.Debug().
			Str("test", query.Test).
			Int("results", len(docs)).
			Msg("Index produced multiple results")
	}
	return docs, nil
}

func (s *IndexService) Refresh(ctx context.Context) error {
	return s.call(ctx, "refresh", s.backing.Refresh)
}

// call runs fn under the rate limiter and the per-call timeout
func (s *IndexService) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s rate limited: %v", models.ErrIndexDisconnected, op, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrIndexDisconnected) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", models.ErrIndexDisconnected, op, err)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s timed out after %s", models.ErrIndexDisconnected, op, s.timeout)
	}
}
