package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/models"
)

type stubIndex struct {
	docs      []*models.TestFailureDoc
	err       error
	delay     time.Duration
	lastQuery models.IndexQuery
}

func (s *stubIndex) Insert(ctx context.Context, doc *models.TestFailureDoc) error { return s.err }
func (s *stubIndex) Delete(ctx context.Context, ids []int64) error             { return s.err }
func (s *stubIndex) Refresh(ctx context.Context) error                          { return s.err }
func (s *stubIndex) Search(ctx context.Context, q models.IndexQuery) ([]*models.TestFailureDoc, error) {
	s.lastQuery = q
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.docs, s.err
}

func testConfig() *common.SearchConfig {
	return &common.SearchConfig{Enabled: true, Timeout: "50ms", RateLimit: 0, Burst: 1, MaxResults: 10}
}

func TestIndexService_Search(t *testing.T) {
	backing := &stubIndex{docs: []*models.TestFailureDoc{{ID: 1}}}
	svc := NewIndexService(backing, arbor.NewLogger(), testConfig())

	docs, err := svc.Search(context.Background(), models.IndexQuery{Test: "a.html", Limit: 500})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 10, backing.lastQuery.Limit, "limit is capped at max_results")
}

func TestIndexService_ErrorsBecomeDisconnected(t *testing.T) {
	t.Run("backing error", func(t *testing.T) {
		svc := NewIndexService(&stubIndex{err: errors.New("connection refused")}, arbor.NewLogger(), testConfig())
		_, err := svc.Search(context.Background(), models.IndexQuery{})
		assert.ErrorIs(t, err, models.ErrIndexDisconnected)
		assert.ErrorIs(t, svc.Insert(context.Background(), &models.TestFailureDoc{ID: 1}), models.ErrIndexDisconnected)
	})

	t.Run("timeout", func(t *testing.T) {
		svc := NewIndexService(&stubIndex{delay: time.Second}, arbor.NewLogger(), testConfig())
		start := time.Now()
		_, err := svc.Search(context.Background(), models.IndexQuery{})
		assert.ErrorIs(t, err, models.ErrIndexDisconnected)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestNewIndexService_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	backing := &stubIndex{docs: []*models.TestFailureDoc{{ID: 1}}}

	svc := NewIndexService(backing, arbor.NewLogger(), cfg)
	_, ok := svc.(*DisabledIndexService)
	require.True(t, ok)

	docs, err := svc.Search(context.Background(), models.IndexQuery{Test: "a.html"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, svc.Insert(context.Background(), &models.TestFailureDoc{ID: 1}))
}
