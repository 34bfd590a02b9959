package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/autoclass/internal/models"
)

// JobStorage - the slice of the CI job table the classifier owns
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id int64) (*models.Job, error)

	// AdvanceStatus moves the job from one status to the next. Returns false when the job
	// was not in the expected status (another task got there first).
	AdvanceStatus(ctx context.Context, id int64, from, to models.AutoclassifyStatus) (bool, error)

	// ListSiblings returns jobs with the same push and signature, excluding the job itself, by ascending id
	ListSiblings(ctx context.Context, job *models.Job) ([]*models.Job, error)

	// ListStale returns jobs left in status since before the cutoff
	ListStale(ctx context.Context, status models.AutoclassifyStatus, before time.Time, limit int) ([]*models.Job, error)
}

// FailureLineStorage - structured failure lines
type FailureLineStorage interface {
	CreateFailureLines(ctx context.Context, lines []*models.FailureLine) error
	GetFailureLine(ctx context.Context, id int64) (*models.FailureLine, error)
	ListFailureLines(ctx context.Context, jobID int64) ([]*models.FailureLine, error)
	ListFailureLinesByClassification(ctx context.Context, classifiedFailureID int64) ([]*models.FailureLine, error)

	// PromoteBestClassification sets an unverified best classification when the line has none or the same one
	PromoteBestClassification(ctx context.Context, id, classifiedFailureID int64) (bool, error)

	// SetBestClassification overwrites the best classification and verified flag
	SetBestClassification(ctx context.Context, id int64, classifiedFailureID *int64, verified bool) error
}

// TextLogStorage - unstructured text log steps, errors and their metadata
type TextLogStorage interface {
	CreateStep(ctx context.Context, step *models.TextLogStep) error
	CreateTextLogErrors(ctx context.Context, errors []*models.TextLogError) error
	ListTextLogErrors(ctx context.Context, jobID int64) ([]*models.TextLogError, error)
	MaxTextLogErrorID(ctx context.Context) (int64, error)

	GetJobError(ctx context.Context, id int64) (*models.JobError, error)
	GetJobErrorByFailureLine(ctx context.Context, failureLineID int64) (*models.JobError, error)

	// ListJobErrors returns every error of the job ordered by step and line number
	ListJobErrors(ctx context.Context, jobID int64) ([]*models.JobError, error)

	// ListUnmatchedJobErrors returns errors of the job that have no TextLogErrorMatch
	ListUnmatchedJobErrors(ctx context.Context, jobID int64) ([]*models.JobError, error)

	UpsertMetadata(ctx context.Context, metadata *models.TextLogErrorMetadata) error
	PromoteBestClassification(ctx context.Context, textLogErrorID, classifiedFailureID int64) (bool, error)
	SetBestClassification(ctx context.Context, textLogErrorID int64, classifiedFailureID *int64, verified bool) error
}

// ClassificationStorage - classified failures and bug-number merges
type ClassificationStorage interface {
	CreateClassifiedFailure(ctx context.Context, bugNumber *int64) (*models.ClassifiedFailure, error)
	GetClassifiedFailure(ctx context.Context, id int64) (*models.ClassifiedFailure, error)
	GetClassifiedFailureByBug(ctx context.Context, bugNumber int64) (*models.ClassifiedFailure, error)

	// SetBugNumber updates the bug number. A collision surfaces as models.ErrIntegrity.
	SetBugNumber(ctx context.Context, id int64, bugNumber int64) error

	// Merge re-points every match and best classification from loser to winner, keeping
	// the higher score on duplicate matches, and deletes loser.
	Merge(ctx context.Context, loserID, winnerID int64) error
}

// MatchStorage - persisted match rows and the exact-attribute candidate queries
type MatchStorage interface {
	// InsertTextLogErrorMatch returns models.ErrDuplicateMatch when the tuple exists
	InsertTextLogErrorMatch(ctx context.Context, match *models.TextLogErrorMatch) error
	InsertFailureMatch(ctx context.Context, match *models.FailureMatch) error
	ListTextLogErrorMatches(ctx context.Context, textLogErrorID int64) ([]*models.TextLogErrorMatch, error)
	ListFailureMatches(ctx context.Context, failureLineID int64) ([]*models.FailureMatch, error)

	// BestPreciseMatch and BestCrashMatch return the top candidate whose error id lies in [lower, upper],
	// ordered by (-score, -classified_failure_id). nil when the window holds none.
	BestPreciseMatch(ctx context.Context, q models.PreciseQuery, lower, upper int64) (*models.MatchCandidate, error)
	BestCrashMatch(ctx context.Context, q models.CrashQuery, lower, upper int64) (*models.MatchCandidate, error)
}

// MatcherStorage - the matcher catalog
type MatcherStorage interface {
	// RegisterMatcher returns the catalog row for name, creating it if needed
	RegisterMatcher(ctx context.Context, name string) (*models.Matcher, error)
	ListMatchers(ctx context.Context) ([]*models.Matcher, error)
}

// NoteStorage - job notes and bug/job associations
type NoteStorage interface {
	JobHasNote(ctx context.Context, jobID int64) (bool, error)
	// JobHasNonAutoNote ignores notes written by the autoclassifier
	JobHasNonAutoNote(ctx context.Context, jobID int64) (bool, error)
	CreateJobNote(ctx context.Context, note *models.JobNote) error
	ListJobNotes(ctx context.Context, jobID int64) ([]*models.JobNote, error)
	GetOrCreateBugJobMap(ctx context.Context, jobID, bugID int64, user string) (*models.BugJobMap, error)
	ListBugJobMaps(ctx context.Context, jobID int64) ([]*models.BugJobMap, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	JobStorage() JobStorage
	FailureLineStorage() FailureLineStorage
	TextLogStorage() TextLogStorage
	ClassificationStorage() ClassificationStorage
	MatchStorage() MatchStorage
	MatcherStorage() MatcherStorage
	NoteStorage() NoteStorage

	// RunInTx runs fn in a single transaction. Storage calls made with the context
	// passed to fn join it; nested calls reuse the outer transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}
