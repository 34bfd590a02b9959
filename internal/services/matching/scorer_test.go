package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score("assertion failed", "assertion failed"))
	assert.Equal(t, 0.0, Score("abc", "xyz"))

	partial := Score("assertion failed: expected 1", "assertion failed: expected 2")
	assert.Greater(t, partial, 0.9)
	assert.Less(t, partial, 1.0)
}

func TestScorer_BestMatch(t *testing.T) {
	s := NewScorer("Timed out waiting for load event")

	i, ratio, ok := s.BestMatch([]string{
		"completely unrelated",
		"Timed out waiting for load event",
		"Timed out waiting for a load event",
	})
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1.0, ratio)

	_, _, ok = s.BestMatch(nil)
	assert.False(t, ok)
}

func TestScorer_BestMatchKeepsEarliestTie(t *testing.T) {
	s := NewScorer("abcd")

	i, _, ok := s.BestMatch([]string{"abcx", "abcy"})
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
}
