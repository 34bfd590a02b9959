package models

import "time"

// Matcher and detector names. Autoclassify matchers run in the order of AutoclassifyMatchers.
const (
	MatcherPrecise        = "PreciseTestMatcher"
	MatcherSimilarity     = "ElasticSearchTestMatcher"
	MatcherCrashSignature = "CrashSignatureMatcher"
	DetectorTestFailure   = "TestFailureDetector"
	DetectorManual        = "ManualDetector"
)

// AutoclassifyMatchers is the fixed registration order of the autoclassify matchers
var AutoclassifyMatchers = []string{MatcherPrecise, MatcherSimilarity, MatcherCrashSignature}

// Matcher is a catalog entry for a matching strategy or detector
type Matcher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ClassifiedFailure is an equivalence class of failures, optionally tied to a bug
type ClassifiedFailure struct {
	ID        int64     `json:"id"`
	BugNumber *int64    `json:"bug_number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TextLogErrorMatch asserts that a TextLogError resembles a ClassifiedFailure
type TextLogErrorMatch struct {
	ID                  int64   `json:"id"`
	TextLogErrorID      int64   `json:"text_log_error_id"`
	ClassifiedFailureID int64   `json:"classified_failure_id"`
	MatcherID           int64   `json:"matcher_id"`
	Score               float64 `json:"score"`
}

// FailureMatch mirrors a TextLogErrorMatch for the paired FailureLine
type FailureMatch struct {
	ID                  int64   `json:"id"`
	FailureLineID       int64   `json:"failure_line_id"`
	ClassifiedFailureID int64   `json:"classified_failure_id"`
	MatcherID           int64   `json:"matcher_id"`
	Score               float64 `json:"score"`
}

// MatchCandidate is a stored match returned by the exact-attribute candidate queries
type MatchCandidate struct {
	MatchID             int64   `json:"match_id"`
	TextLogErrorID      int64   `json:"text_log_error_id"`
	ClassifiedFailureID int64   `json:"classified_failure_id"`
	Score               float64 `json:"score"`
}

// PreciseQuery selects stored matches whose FailureLine has identical test attributes.
// JobID is the querying job, excluded unless its lines already carry a best classification.
type PreciseQuery struct {
	JobID    int64
	Test     string
	Subtest  string
	Status   string
	Expected string
	Message  string
}

// CrashQuery selects stored matches whose FailureLine is a crash with the same signature.
// When SameTest is set only lines for Test are considered.
type CrashQuery struct {
	JobID     int64
	Signature string
	Test      string
	SameTest  bool
}

// IndexQuery is a filtered phrase query against the Index.
// Subtest is only filtered on when non-empty.
type IndexQuery struct {
	Test                  string
	Subtest               string
	Status                string
	Expected              string
	Phrase                string
	RequireClassification bool
	Limit                 int
}
