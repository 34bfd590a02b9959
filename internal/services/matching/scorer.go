package matching

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Scorer rates candidate messages against one target message using the
// Ratcliff/Obershelp ratio. A single space is junk on the target side.
type Scorer struct {
	matcher *difflib.SequenceMatcher
}

func isJunk(s string) bool {
	return s == " "
}

// NewScorer creates a scorer for target
func NewScorer(target string) *Scorer {
	return &Scorer{
		matcher: difflib.NewMatcherWithJunk(nil, chars(target), true, isJunk),
	}
}

// Score returns the similarity of candidate to the target in [0,1]
func (s *Scorer) Score(candidate string) float64 {
	s.matcher.SetSeq1(chars(candidate))
	return s.matcher.Ratio()
}

// BestMatch returns the index and ratio of the candidate most similar to the target.
// The quick ratio bounds the real ratio from above, so candidates whose quick ratio is
// below the best real ratio so far are skipped. Ties keep the earliest candidate.
func (s *Scorer) BestMatch(candidates []string) (int, float64, bool) {
	best := -1
	bestRatio := 0.0
	for i, c := range candidates {
		s.matcher.SetSeq1(chars(c))
		if best >= 0 && s.matcher.QuickRatio() < bestRatio {
			continue
		}
		ratio := s.matcher.Ratio()
		if best < 0 || ratio > bestRatio {
			best = i
			bestRatio = ratio
		}
	}
	return best, bestRatio, best >= 0
}

// Score is a convenience for one-off comparisons
func Score(candidate, target string) float64 {
	return NewScorer(target).Score(candidate)
}

// chars splits s into its characters
func chars(s string) []string {
	return strings.Split(s, "")
}
