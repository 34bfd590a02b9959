package matching

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/models"
)

// WindowQuery returns the best stored match whose error id lies in [lower, upper]
type WindowQuery func(ctx context.Context, lower, upper int64) (*models.MatchCandidate, error)

// Scaled is a window query whose scores are multiplied by Factor
type Scaled struct {
	Query  WindowQuery
	Factor float64
}

// Window walks stored matches newest first in id windows of Size.
// The walk stops at the first good-enough score, when ids run out, or once Budget
// has elapsed after a window; at least one window always runs.
type Window struct {
	Size       int64
	Budget     time.Duration
	GoodEnough float64
	MaxID      func(ctx context.Context) (int64, error)
	Now        func() time.Time
	Logger     arbor.ILogger
}

// Best runs the queries in order and returns the result of the first that finds anything
func (w *Window) Best(ctx context.Context, queries ...Scaled) (*Candidate, error) {
	for _, q := range queries {
		c, err := w.run(ctx, q)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, nil
}

func (w *Window) run(ctx context.Context, q Scaled) (*Candidate, error) {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	factor := q.Factor
	if factor == 0 {
		factor = 1
	}

	upper, err := w.MaxID(ctx)
	if err != nil {
		return nil, err
	}

	var found []*Candidate
	start := now()
	windows := 0

	for upper > 0 {
		windows++
		lower := upper - w.Size
		if lower < 0 {
			lower = 0
		}

		mc, err := q.Query(ctx, lower, upper)
		if err != nil {
			return nil, err
		}
		if mc != nil {
			c := &Candidate{ClassifiedFailureID: mc.ClassifiedFailureID, Score: mc.Score * factor}
			found = append(found, c)
			if c.Score >= w.GoodEnough {
				break
			}
		}
		upper -= w.Size

		if w.Budget > 0 && now().Sub(start) > w.Budget {
			break
		}
	}

	if w.Logger != nil {
		w.Logger.Trace().Int("windows", windows).Int("candidates", len(found)).Msg("Window walk finished")
	}

	if len(found) == 0 {
		return nil, nil
	}
	sort.SliceStable(found, func(i, j int) bool { return better(found[i], found[j]) })
	return found[0], nil
}
