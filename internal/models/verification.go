package models

// VerificationRequest is a human confirmation or override of a best classification.
// Exactly one of TextLogErrorID or FailureLineID identifies the target.
// A nil ClassificationID with no BugNumber marks the line as ignorable.
type VerificationRequest struct {
	TextLogErrorID   int64  `json:"text_log_error_id,omitempty" validate:"required_without=FailureLineID,excluded_with=FailureLineID"`
	FailureLineID    int64  `json:"failure_line_id,omitempty" validate:"required_without=TextLogErrorID"`
	ClassificationID *int64 `json:"classification_id,omitempty" validate:"omitempty,gt=0"`
	BugNumber        *int64 `json:"bug_number,omitempty" validate:"omitempty,gte=0"`
	User             string `json:"user" validate:"required"`
}

// VerificationResult reports what a verification changed
type VerificationResult struct {
	TextLogErrorID       int64  `json:"text_log_error_id,omitempty"`
	FailureLineID        int64  `json:"failure_line_id,omitempty"`
	BestClassificationID *int64 `json:"best_classification,omitempty"`
	Merged               bool   `json:"merged"`
	NoteCreated          bool   `json:"note_created"`
}
