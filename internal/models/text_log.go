package models

// TextLogStep is a step of a job's unstructured text log
type TextLogStep struct {
	ID                 int64  `json:"id"`
	JobID              int64  `json:"job_id" validate:"required"`
	Name               string `json:"name"`
	Result             string `json:"result"`
	StartedLineNumber  int    `json:"started_line_number"`
	FinishedLineNumber int    `json:"finished_line_number"`
}

// TextLogError is an error line extracted from an unstructured text log step
type TextLogError struct {
	ID         int64  `json:"id"`
	StepID     int64  `json:"step_id" validate:"required"`
	LineNumber int    `json:"line_number" validate:"gte=0"`
	Line       string `json:"line"`
}

// TextLogErrorMetadata holds the cross-reference and classification state of a TextLogError
type TextLogErrorMetadata struct {
	TextLogErrorID       int64  `json:"text_log_error_id"`
	FailureLineID        *int64 `json:"failure_line_id,omitempty"`
	BestClassificationID *int64 `json:"best_classification,omitempty"`
	BestIsVerified       bool   `json:"best_is_verified"`
}

// JobError is a TextLogError together with the state the matchers read:
// owning job, metadata and the paired FailureLine (nil when unpaired).
type JobError struct {
	TextLogError
	JobID       int64                 `json:"job_id"`
	Metadata    *TextLogErrorMetadata `json:"metadata,omitempty"`
	FailureLine *FailureLine          `json:"failure_line,omitempty"`
}

// BestClassificationID returns the error's best classification, if any
func (e *JobError) BestClassificationID() *int64 {
	if e.Metadata == nil {
		return nil
	}
	return e.Metadata.BestClassificationID
}

// Paired reports whether the error was cross-referenced to a FailureLine
func (e *JobError) Paired() bool {
	return e.FailureLine != nil
}
