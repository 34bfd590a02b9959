package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// NoteStorage implements interfaces.NoteStorage
type NoteStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewNoteStorage creates a new job note storage instance
func NewNoteStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.NoteStorage {
	return &NoteStorage{db: db, logger: logger}
}

func (s *NoteStorage) JobHasNote(ctx context.Context, jobID int64) (bool, error) {
	var exists bool
	if err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_note WHERE job_id = ?)`, jobID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check job notes: %w", err)
	}
	return exists, nil
}

func (s *NoteStorage) JobHasNonAutoNote(ctx context.Context, jobID int64) (bool, error) {
	var exists bool
	if err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_note WHERE job_id = ? AND failure_classification != ?)`,
		jobID, models.ClassificationAutoclassifiedIntermittent).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check job notes: %w", err)
	}
	return exists, nil
}

func (s *NoteStorage) CreateJobNote(ctx context.Context, note *models.JobNote) error {
	now := unixNow()
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO job_note (job_id, failure_classification, classified_failure_id, user, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		note.JobID, note.FailureClassification, nullInt64(note.ClassifiedFailureID), note.User, note.Text, now)
	if err != nil {
		return fmt.Errorf("failed to create job note: %w", mapError(err))
	}
	if note.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	note.CreatedAt = fromUnix(now)
	return nil
}

func (s *NoteStorage) ListJobNotes(ctx context.Context, jobID int64) ([]*models.JobNote, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, job_id, failure_classification, classified_failure_id, user, text, created_at
		 FROM job_note WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.JobNote
	for rows.Next() {
		var n models.JobNote
		var cf sql.NullInt64
		var created int64
		if err := rows.Scan(&n.ID, &n.JobID, &n.FailureClassification, &cf, &n.User, &n.Text, &created); err != nil {
			return nil, err
		}
		n.ClassifiedFailureID = ptrInt64(cf)
		n.CreatedAt = fromUnix(created)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (s *NoteStorage) GetOrCreateBugJobMap(ctx context.Context, jobID, bugID int64, user string) (*models.BugJobMap, error) {
	if _, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO bug_job_map (job_id, bug_id, user, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id, bug_id) DO NOTHING`,
		jobID, bugID, user, unixNow()); err != nil {
		return nil, fmt.Errorf("failed to create bug job map: %w", mapError(err))
	}

	var m models.BugJobMap
	var created int64
	if err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, job_id, bug_id, user, created_at FROM bug_job_map WHERE job_id = ? AND bug_id = ?`,
		jobID, bugID).Scan(&m.ID, &m.JobID, &m.BugID, &m.User, &created); err != nil {
		return nil, fmt.Errorf("failed to read bug job map: %w", mapError(err))
	}
	m.CreatedAt = fromUnix(created)
	return &m, nil
}

func (s *NoteStorage) ListBugJobMaps(ctx context.Context, jobID int64) ([]*models.BugJobMap, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, job_id, bug_id, user, created_at FROM bug_job_map WHERE job_id = ? ORDER BY bug_id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bug job maps: %w", err)
	}
	defer rows.Close()

	var maps []*models.BugJobMap
	for rows.Next() {
		var m models.BugJobMap
		var created int64
		if err := rows.Scan(&m.ID, &m.JobID, &m.BugID, &m.User, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = fromUnix(created)
		maps = append(maps, &m)
	}
	return maps, rows.Err()
}
