package models

import "time"

// Failure line actions as emitted by the structured log parser
const (
	ActionTestResult = "test_result"
	ActionLog        = "log"
	ActionCrash      = "crash"
	ActionTruncated  = "truncated"
	ActionGroup      = "group"
)

// SignatureNone is the parser's placeholder for a crash without a usable signature
const SignatureNone = "None"

// FailureLine is a structured failure record extracted from a job's machine-readable log.
// Payload fields are stored as empty strings when the parser omits them.
// BestClassificationID == nil with BestIsVerified == true means a human marked the line as ignorable.
type FailureLine struct {
	ID                   int64     `json:"id"`
	JobID                int64     `json:"job_id" validate:"required"`
	Line                 int       `json:"line" validate:"gte=0"`
	Action               string    `json:"action" validate:"required"`
	Test                 string    `json:"test,omitempty" validate:"required_if=Action test_result"`
	Subtest              string    `json:"subtest,omitempty"`
	Status               string    `json:"status,omitempty" validate:"required_if=Action test_result"`
	Expected             string    `json:"expected,omitempty"`
	Message              string    `json:"message,omitempty"`
	Signature            string    `json:"signature,omitempty"`
	Level                string    `json:"level,omitempty" validate:"required_if=Action log"`
	BestClassificationID *int64    `json:"best_classification,omitempty"`
	BestIsVerified       bool      `json:"best_is_verified"`
	CreatedAt            time.Time `json:"created_at"`
}

// IsTestResultWithMessage reports whether the line is a test result carrying a message,
// the subset handled by the exact-attribute and similarity matchers.
func (f *FailureLine) IsTestResultWithMessage() bool {
	return f.Action == ActionTestResult && f.Message != ""
}

// HasCrashSignature reports whether the line is a crash with a usable signature
func (f *FailureLine) HasCrashSignature() bool {
	return f.Action == ActionCrash && f.Signature != "" && f.Signature != SignatureNone
}

// IsIgnored reports whether a human explicitly classified this line as noise
func (f *FailureLine) IsIgnored() bool {
	return f.BestClassificationID == nil && f.BestIsVerified
}

// TestFailureDoc is the Index document for a classified test_result failure line
type TestFailureDoc struct {
	ID                 int64  `json:"id"`
	JobID              int64  `json:"job_id"`
	Test               string `json:"test"`
	Subtest            string `json:"subtest"`
	Status             string `json:"status"`
	Expected           string `json:"expected"`
	BestClassification int64  `json:"best_classification"`
	Message            string `json:"message"`
}

// NewTestFailureDoc builds an Index document from a failure line.
// Returns nil when the line is not indexable.
func NewTestFailureDoc(f *FailureLine) *TestFailureDoc {
	if f.Action != ActionTestResult || f.Message == "" || f.BestClassificationID == nil {
		return nil
	}
	return &TestFailureDoc{
		ID:                 f.ID,
		JobID:              f.JobID,
		Test:               f.Test,
		Subtest:            f.Subtest,
		Status:             f.Status,
		Expected:           f.Expected,
		BestClassification: *f.BestClassificationID,
		Message:            f.Message,
	}
}
