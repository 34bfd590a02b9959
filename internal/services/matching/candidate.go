package matching

import "github.com/ternarybob/autoclass/internal/models"

// Candidate is the best classification a matcher found for one error
type Candidate struct {
	ClassifiedFailureID int64
	Score               float64
}

// Match is a matcher result for one error
type Match struct {
	Error               *models.JobError
	ClassifiedFailureID int64
	Score               float64
	Matcher             string
}

// better orders candidates by (-score, -classified_failure_id)
func better(a, b *Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ClassifiedFailureID > b.ClassifiedFailureID
}
