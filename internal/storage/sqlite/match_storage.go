package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// MatchStorage implements interfaces.MatchStorage
type MatchStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewMatchStorage creates a new match storage instance
func NewMatchStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{db: db, logger: logger}
}

func (s *MatchStorage) InsertTextLogErrorMatch(ctx context.Context, m *models.TextLogErrorMatch) error {
	id, err := s.insertMatch(ctx,
		`INSERT INTO text_log_error_match (text_log_error_id, classified_failure_id, matcher_id, score)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		m.TextLogErrorID, m.ClassifiedFailureID, m.MatcherID, m.Score)
	if err != nil {
		return fmt.Errorf("text log error %d -> classified failure %d: %w", m.TextLogErrorID, m.ClassifiedFailureID, err)
	}
	m.ID = id
	return nil
}

func (s *MatchStorage) InsertFailureMatch(ctx context.Context, m *models.FailureMatch) error {
	id, err := s.insertMatch(ctx,
		`INSERT INTO failure_match (failure_line_id, classified_failure_id, matcher_id, score)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		m.FailureLineID, m.ClassifiedFailureID, m.MatcherID, m.Score)
	if err != nil {
		return fmt.Errorf("failure line %d -> classified failure %d: %w", m.FailureLineID, m.ClassifiedFailureID, err)
	}
	m.ID = id
	return nil
}

func (s *MatchStorage) insertMatch(ctx context.Context, query string, lineID, cfID, matcherID int64, score float64) (int64, error) {
	res, err := s.db.conn(ctx).ExecContext(ctx, query, lineID, cfID, matcherID, score)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, models.ErrDuplicateMatch
	}
	return res.LastInsertId()
}

func (s *MatchStorage) ListTextLogErrorMatches(ctx context.Context, textLogErrorID int64) ([]*models.TextLogErrorMatch, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, text_log_error_id, classified_failure_id, matcher_id, score
		 FROM text_log_error_match WHERE text_log_error_id = ? ORDER BY id ASC`, textLogErrorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list text log error matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.TextLogErrorMatch
	for rows.Next() {
		var m models.TextLogErrorMatch
		if err := rows.Scan(&m.ID, &m.TextLogErrorID, &m.ClassifiedFailureID, &m.MatcherID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (s *MatchStorage) ListFailureMatches(ctx context.Context, failureLineID int64) ([]*models.FailureMatch, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, failure_line_id, classified_failure_id, matcher_id, score
		 FROM failure_match WHERE failure_line_id = ? ORDER BY id ASC`, failureLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.FailureMatch
	for rows.Next() {
		var m models.FailureMatch
		if err := rows.Scan(&m.ID, &m.FailureLineID, &m.ClassifiedFailureID, &m.MatcherID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// candidateSelect reads stored error matches joined to the paired failure line.
// Errors without a best classification are skipped when verified (ignored by a human)
// or when they belong to the querying job.
const candidateSelect = `
	SELECT m.id, m.text_log_error_id, m.classified_failure_id, m.score
	FROM text_log_error_match m
	JOIN text_log_error_metadata md ON md.text_log_error_id = m.text_log_error_id
	JOIN failure_line fl ON fl.id = md.failure_line_id
	WHERE m.text_log_error_id BETWEEN ? AND ?
		AND NOT (md.best_classification_id IS NULL AND (md.best_is_verified = 1 OR fl.job_id = ?))`

const candidateOrder = ` ORDER BY m.score DESC, m.classified_failure_id DESC LIMIT 1`

func (s *MatchStorage) BestPreciseMatch(ctx context.Context, q models.PreciseQuery, lower, upper int64) (*models.MatchCandidate, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx,
		candidateSelect+`
		AND fl.action = 'test_result'
		AND fl.test = ? AND fl.subtest = ? AND fl.status = ? AND fl.expected = ? AND fl.message = ?`+candidateOrder,
		lower, upper, q.JobID, q.Test, q.Subtest, q.Status, q.Expected, q.Message)
	return scanCandidate(row)
}

func (s *MatchStorage) BestCrashMatch(ctx context.Context, q models.CrashQuery, lower, upper int64) (*models.MatchCandidate, error) {
	query := candidateSelect + `
		AND fl.action = 'crash' AND fl.signature = ?`
	args := []interface{}{lower, upper, q.JobID, q.Signature}
	if q.SameTest {
		query += ` AND fl.test = ?`
		args = append(args, q.Test)
	}
	row := s.db.conn(ctx).QueryRowContext(ctx, query+candidateOrder, args...)
	return scanCandidate(row)
}

func scanCandidate(row *sql.Row) (*models.MatchCandidate, error) {
	var c models.MatchCandidate
	err := row.Scan(&c.MatchID, &c.TextLogErrorID, &c.ClassifiedFailureID, &c.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match candidates: %w", err)
	}
	return &c, nil
}
