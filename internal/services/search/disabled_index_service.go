package search

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// DisabledIndexService is the no-op Index used when search is disabled.
// Writes are dropped and searches return no documents.
type DisabledIndexService struct {
	logger arbor.ILogger
}

// NewDisabledIndexService creates a no-op Index
func NewDisabledIndexService(logger arbor.ILogger) interfaces.Index {
	return &DisabledIndexService{logger: logger}
}

func (s *DisabledIndexService) Insert(ctx context.Context, doc *models.TestFailureDoc) error {
	return nil
}

func (s *DisabledIndexService) Delete(ctx context.Context, ids []int64) error {
	return nil
}

func (s *DisabledIndexService) Search(ctx context.Context, query models.IndexQuery) ([]*models.TestFailureDoc, error) {
	s.logger.Trace().Str("test", query.Test).Msg("Index disabled, skipping search")
	return nil, nil
}

func (s *DisabledIndexService) Refresh(ctx context.Context) error {
	return nil
}
