package models

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMatch is returned when a (line, classified failure, matcher) match already exists
	ErrDuplicateMatch = errors.New("duplicate match")

	// ErrIntegrity is returned for constraint violations other than duplicate matches
	ErrIntegrity = errors.New("integrity violation")

	// ErrCannotMerge is returned when a bug-number collision could not be resolved by merging
	ErrCannotMerge = errors.New("cannot merge classified failures")

	// ErrInvalidStatus is returned when an operation is not valid for the job's autoclassify status
	ErrInvalidStatus = errors.New("invalid autoclassify status")

	// ErrAlreadyAutoclassified is returned when cross-referencing a job that is past cross-reference
	ErrAlreadyAutoclassified = errors.New("job already autoclassified")

	// ErrClassifyFailed wraps a classify error once the job's status has been recorded as failed
	ErrClassifyFailed = errors.New("autoclassify failed")

	// ErrIndexDisconnected is the single condition reported when the Index cannot be reached
	ErrIndexDisconnected = errors.New("index disconnected")

	// ErrInvalidRequest is returned for malformed verification or ingestion input
	ErrInvalidRequest = errors.New("invalid request")
)
