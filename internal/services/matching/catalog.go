package matching

import (
	"context"
	"fmt"

	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// Catalog maps matcher and detector names to their stored ids and registration rank
type Catalog struct {
	ids   map[string]int64
	ranks map[string]int
}

// CatalogNames lists every matcher and detector in registration order
var CatalogNames = append(append([]string{}, models.AutoclassifyMatchers...),
	models.DetectorTestFailure, models.DetectorManual)

// RegisterCatalog registers all matchers and detectors, creating missing rows
func RegisterCatalog(ctx context.Context, store interfaces.MatcherStorage) (*Catalog, error) {
	c := &Catalog{ids: make(map[string]int64), ranks: make(map[string]int)}
	for rank, name := range CatalogNames {
		m, err := store.RegisterMatcher(ctx, name)
		if err != nil {
			return nil, err
		}
		c.ids[name] = m.ID
		c.ranks[name] = rank
	}
	return c, nil
}

// ID returns the stored id of the named matcher
func (c *Catalog) ID(name string) (int64, error) {
	id, ok := c.ids[name]
	if !ok {
		return 0, fmt.Errorf("matcher %s is not registered", name)
	}
	return id, nil
}

// Rank returns the registration position of the named matcher, -1 if unknown
func (c *Catalog) Rank(name string) int {
	if r, ok := c.ranks[name]; ok {
		return r
	}
	return -1
}

// BestByError picks the best match for each error: highest score, then highest
// classified failure id, then latest registered matcher
func (c *Catalog) BestByError(matches []Match) map[int64]Match {
	best := make(map[int64]Match)
	for _, m := range matches {
		cur, ok := best[m.Error.ID]
		if !ok || c.outranks(m, cur) {
			best[m.Error.ID] = m
		}
	}
	return best
}

func (c *Catalog) outranks(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ClassifiedFailureID != b.ClassifiedFailureID {
		return a.ClassifiedFailureID > b.ClassifiedFailureID
	}
	return c.Rank(a.Matcher) > c.Rank(b.Matcher)
}
