package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/autoclass/internal/models"
)

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func maxID(id int64) func(context.Context) (int64, error) {
	return func(context.Context) (int64, error) { return id, nil }
}

type windowCall struct{ lower, upper int64 }

func recordingQuery(calls *[]windowCall, results map[int64]*models.MatchCandidate) WindowQuery {
	return func(ctx context.Context, lower, upper int64) (*models.MatchCandidate, error) {
		*calls = append(*calls, windowCall{lower, upper})
		return results[upper], nil
	}
}

func TestWindow_WalksAllWindowsNewestFirst(t *testing.T) {
	var calls []windowCall
	w := &Window{Size: 10, GoodEnough: 0.9, MaxID: maxID(25)}

	got, err := w.Best(context.Background(), Scaled{Query: recordingQuery(&calls, map[int64]*models.MatchCandidate{
		15: {ClassifiedFailureID: 3, Score: 0.5},
		5:  {ClassifiedFailureID: 4, Score: 0.7},
	})})
	require.NoError(t, err)

	assert.Equal(t, []windowCall{{15, 25}, {5, 15}, {0, 5}}, calls)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.ClassifiedFailureID)
	assert.Equal(t, 0.7, got.Score)
}

func TestWindow_StopsWhenGoodEnough(t *testing.T) {
	var calls []windowCall
	w := &Window{Size: 10, GoodEnough: 0.9, MaxID: maxID(30)}

	got, err := w.Best(context.Background(), Scaled{Query: recordingQuery(&calls, map[int64]*models.MatchCandidate{
		30: {ClassifiedFailureID: 2, Score: 0.95},
	})})
	require.NoError(t, err)
	assert.Len(t, calls, 1)
	assert.Equal(t, int64(2), got.ClassifiedFailureID)
}

func TestWindow_StopsWhenBudgetSpent(t *testing.T) {
	var calls []windowCall
	clock := &fakeClock{now: time.Unix(0, 0), step: 300 * time.Millisecond}
	w := &Window{Size: 10, Budget: 500 * time.Millisecond, GoodEnough: 0.9, MaxID: maxID(100), Now: clock.Now}

	got, err := w.Best(context.Background(), Scaled{Query: recordingQuery(&calls, nil)})
	require.NoError(t, err)
	assert.Nil(t, got)
	// start at 300ms; checks at 600ms (300ms elapsed) and 900ms (600ms elapsed)
	assert.Len(t, calls, 2)
}

func TestWindow_TieBreaksOnClassifiedFailureID(t *testing.T) {
	var calls []windowCall
	w := &Window{Size: 10, GoodEnough: 0.9, MaxID: maxID(20)}

	got, err := w.Best(context.Background(), Scaled{Query: recordingQuery(&calls, map[int64]*models.MatchCandidate{
		20: {ClassifiedFailureID: 3, Score: 0.6},
		10: {ClassifiedFailureID: 8, Score: 0.6},
	})})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.ClassifiedFailureID)
}

func TestWindow_ScaledFallback(t *testing.T) {
	var first, second []windowCall
	w := &Window{Size: 100, GoodEnough: 0.9, MaxID: maxID(50)}

	got, err := w.Best(context.Background(),
		Scaled{Query: recordingQuery(&first, nil)},
		Scaled{Query: recordingQuery(&second, map[int64]*models.MatchCandidate{
			50: {ClassifiedFailureID: 1, Score: 1.0},
		}), Factor: 0.8},
	)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.InDelta(t, 0.8, got.Score, 1e-9)
}

func TestWindow_EmptyAndErrors(t *testing.T) {
	var calls []windowCall
	w := &Window{Size: 10, GoodEnough: 0.9, MaxID: maxID(0)}
	got, err := w.Best(context.Background(), Scaled{Query: recordingQuery(&calls, nil)})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, calls)

	boom := errors.New("boom")
	w.MaxID = maxID(5)
	_, err = w.Best(context.Background(), Scaled{Query: func(context.Context, int64, int64) (*models.MatchCandidate, error) {
		return nil, boom
	}})
	assert.ErrorIs(t, err, boom)
}
