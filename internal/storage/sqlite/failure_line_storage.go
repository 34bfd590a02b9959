package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// FailureLineStorage implements interfaces.FailureLineStorage
type FailureLineStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewFailureLineStorage creates a new failure line storage instance
func NewFailureLineStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.FailureLineStorage {
	return &FailureLineStorage{db: db, logger: logger}
}

const failureLineColumns = `id, job_id, line, action, test, subtest, status, expected, message, signature, level,
	best_classification_id, best_is_verified, created_at`

func (s *FailureLineStorage) CreateFailureLines(ctx context.Context, lines []*models.FailureLine) error {
	return s.db.RunInTx(ctx, func(ctx context.Context) error {
		now := unixNow()
		for _, fl := range lines {
			res, err := s.db.conn(ctx).ExecContext(ctx,
				`INSERT INTO failure_line (job_id, line, action, test, subtest, status, expected, message, signature, level,
					best_classification_id, best_is_verified, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fl.JobID, fl.Line, fl.Action, fl.Test, fl.Subtest, fl.Status, fl.Expected, fl.Message, fl.Signature, fl.Level,
				nullInt64(fl.BestClassificationID), fl.BestIsVerified, now)
			if err != nil {
				return fmt.Errorf("failed to insert failure line %d: %w", fl.Line, mapError(err))
			}
			if fl.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			fl.CreatedAt = fromUnix(now)
		}
		return nil
	})
}

func (s *FailureLineStorage) GetFailureLine(ctx context.Context, id int64) (*models.FailureLine, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx, `SELECT `+failureLineColumns+` FROM failure_line WHERE id = ?`, id)
	fl, err := scanFailureLine(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get failure line %d: %w", id, mapError(err))
	}
	return fl, nil
}

func (s *FailureLineStorage) ListFailureLines(ctx context.Context, jobID int64) ([]*models.FailureLine, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT `+failureLineColumns+` FROM failure_line WHERE job_id = ? ORDER BY line ASC, id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure lines: %w", err)
	}
	return scanFailureLines(rows)
}

func (s *FailureLineStorage) ListFailureLinesByClassification(ctx context.Context, classifiedFailureID int64) ([]*models.FailureLine, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT `+failureLineColumns+` FROM failure_line WHERE best_classification_id = ? ORDER BY id ASC`, classifiedFailureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure lines by classification: %w", err)
	}
	return scanFailureLines(rows)
}

func (s *FailureLineStorage) PromoteBestClassification(ctx context.Context, id, classifiedFailureID int64) (bool, error) {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE failure_line SET best_classification_id = ?, best_is_verified = 0
		 WHERE id = ? AND (best_classification_id IS NULL OR best_classification_id = ?) AND best_is_verified = 0`,
		classifiedFailureID, id, classifiedFailureID)
	if err != nil {
		return false, fmt.Errorf("failed to promote failure line classification: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *FailureLineStorage) SetBestClassification(ctx context.Context, id int64, classifiedFailureID *int64, verified bool) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE failure_line SET best_classification_id = ?, best_is_verified = ? WHERE id = ?`,
		nullInt64(classifiedFailureID), verified, id)
	if err != nil {
		return fmt.Errorf("failed to set failure line classification: %w", mapError(err))
	}
	return nil
}

func scanFailureLine(row rowScanner) (*models.FailureLine, error) {
	var fl models.FailureLine
	var best sql.NullInt64
	var created int64
	if err := row.Scan(&fl.ID, &fl.JobID, &fl.Line, &fl.Action, &fl.Test, &fl.Subtest, &fl.Status, &fl.Expected,
		&fl.Message, &fl.Signature, &fl.Level, &best, &fl.BestIsVerified, &created); err != nil {
		return nil, err
	}
	fl.BestClassificationID = ptrInt64(best)
	fl.CreatedAt = fromUnix(created)
	return &fl, nil
}

func scanFailureLines(rows *sql.Rows) ([]*models.FailureLine, error) {
	defer rows.Close()
	var lines []*models.FailureLine
	for rows.Next() {
		fl, err := scanFailureLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fl)
	}
	return lines, rows.Err()
}
