package models

import "time"

// Job results that can be autoclassified
const (
	ResultSuccess    = "success"
	ResultTestFailed = "testfailed"
	ResultBusted     = "busted"
	ResultException  = "exception"
	ResultRetry      = "retry"
	ResultUserCancel = "usercancel"
)

// AutoclassifyStatus is a job's position in the classification state machine
type AutoclassifyStatus string

const (
	StatusPending         AutoclassifyStatus = "pending"
	StatusCrossReferenced AutoclassifyStatus = "cross_referenced"
	StatusAutoclassified  AutoclassifyStatus = "autoclassified"
	StatusSkipped         AutoclassifyStatus = "skipped"
	StatusFailed          AutoclassifyStatus = "failed"
)

// IsTerminal reports whether no further automatic transition leaves this status
func (s AutoclassifyStatus) IsTerminal() bool {
	switch s {
	case StatusAutoclassified, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// CanAdvanceTo reports whether pending -> cross_referenced -> {autoclassified, skipped, failed} allows s -> next
func (s AutoclassifyStatus) CanAdvanceTo(next AutoclassifyStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCrossReferenced
	case StatusCrossReferenced:
		return next.IsTerminal()
	}
	return false
}

// Job is the slice of a CI job the classifier reads and writes
type Job struct {
	ID                 int64              `json:"id"`
	GUID               string             `json:"guid"`
	Signature          string             `json:"signature" validate:"required"`
	PushID             int64              `json:"push_id" validate:"required"`
	Result             string             `json:"result" validate:"required"`
	AutoclassifyStatus AutoclassifyStatus `json:"autoclassify_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsFailure reports whether the job result is one the autoclassifier handles
func (j *Job) IsFailure() bool {
	switch j.Result {
	case ResultTestFailed, ResultBusted, ResultException:
		return true
	}
	return false
}

// Failure classifications recorded on job notes
const (
	ClassificationAutoclassifiedIntermittent = "autoclassified intermittent"
	ClassificationIntermittent               = "intermittent"
	ClassificationIntermittentMixed          = "intermittent-mixed"
)

// AutoclassifierUser is the author recorded on notes written without a human
const AutoclassifierUser = "autoclassifier"

// JobNote is a note attached to a job. User is empty for automatic notes.
type JobNote struct {
	ID                    int64     `json:"id"`
	JobID                 int64     `json:"job_id"`
	FailureClassification string    `json:"failure_classification"`
	ClassifiedFailureID   *int64    `json:"classified_failure_id,omitempty"`
	User                  string    `json:"user,omitempty"`
	Text                  string    `json:"text"`
	CreatedAt             time.Time `json:"created_at"`
}

// Who returns the note author for display
func (n *JobNote) Who() string {
	if n.User == "" {
		return AutoclassifierUser
	}
	return n.User
}

// BugJobMap associates a job with a tracker bug
type BugJobMap struct {
	ID        int64     `json:"id"`
	JobID     int64     `json:"job_id"`
	BugID     int64     `json:"bug_id"`
	User      string    `json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
