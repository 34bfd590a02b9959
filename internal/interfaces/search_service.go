package interfaces

import (
	"context"

	"github.com/ternarybob/autoclass/internal/models"
)

// Index is the phrase-match store of classified test failure lines.
// Implementations report unavailability as models.ErrIndexDisconnected.
type Index interface {
	// Insert adds or replaces the document with doc.ID
	Insert(ctx context.Context, doc *models.TestFailureDoc) error

	Delete(ctx context.Context, ids []int64) error

	// Search returns documents whose attributes equal the query filters and whose
	// message contains the phrase as a contiguous token sequence
	Search(ctx context.Context, query models.IndexQuery) ([]*models.TestFailureDoc, error)

	// Refresh makes prior inserts visible to Search
	Refresh(ctx context.Context) error
}
