package sqlite

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db             *SQLiteDB
	job            interfaces.JobStorage
	failureLine    interfaces.FailureLineStorage
	textLog        interfaces.TextLogStorage
	classification interfaces.ClassificationStorage
	match          interfaces.MatchStorage
	matcher        interfaces.MatcherStorage
	note           interfaces.NoteStorage
	logger         arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}
	return newManager(db, logger), nil
}

func newManager(db *SQLiteDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:             db,
		job:            NewJobStorage(db, logger),
		failureLine:    NewFailureLineStorage(db, logger),
		textLog:        NewTextLogStorage(db, logger),
		classification: NewClassificationStorage(db, logger),
		match:          NewMatchStorage(db, logger),
		matcher:        NewMatcherStorage(db, logger),
		note:           NewNoteStorage(db, logger),
		logger:         logger,
	}
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// FailureLineStorage returns the FailureLine storage interface
func (m *Manager) FailureLineStorage() interfaces.FailureLineStorage {
	return m.failureLine
}

// TextLogStorage returns the TextLog storage interface
func (m *Manager) TextLogStorage() interfaces.TextLogStorage {
	return m.textLog
}

// ClassificationStorage returns the ClassifiedFailure storage interface
func (m *Manager) ClassificationStorage() interfaces.ClassificationStorage {
	return m.classification
}

// MatchStorage returns the Match storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// MatcherStorage returns the Matcher catalog interface
func (m *Manager) MatcherStorage() interfaces.MatcherStorage {
	return m.matcher
}

// NoteStorage returns the JobNote storage interface
func (m *Manager) NoteStorage() interfaces.NoteStorage {
	return m.note
}

// RunInTx runs fn in a single transaction
func (m *Manager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.RunInTx(ctx, fn)
}

// DB returns the underlying database connection
func (m *Manager) DB() *SQLiteDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
