package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// TextLogStorage implements interfaces.TextLogStorage
type TextLogStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewTextLogStorage creates a new text log storage instance
func NewTextLogStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TextLogStorage {
	return &TextLogStorage{db: db, logger: logger}
}

// jobErrorSelect joins an error with its step, metadata and paired failure line
const jobErrorSelect = `
	SELECT e.id, e.step_id, e.line_number, e.line, st.job_id,
		md.text_log_error_id, md.failure_line_id, md.best_classification_id, md.best_is_verified,
		fl.id, fl.job_id, fl.line, fl.action, fl.test, fl.subtest, fl.status, fl.expected, fl.message,
		fl.signature, fl.level, fl.best_classification_id, fl.best_is_verified, fl.created_at
	FROM text_log_error e
	JOIN text_log_step st ON st.id = e.step_id
	LEFT JOIN text_log_error_metadata md ON md.text_log_error_id = e.id
	LEFT JOIN failure_line fl ON fl.id = md.failure_line_id`

func (s *TextLogStorage) CreateStep(ctx context.Context, step *models.TextLogStep) error {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO text_log_step (job_id, name, result, started_line_number, finished_line_number) VALUES (?, ?, ?, ?, ?)`,
		step.JobID, step.Name, step.Result, step.StartedLineNumber, step.FinishedLineNumber)
	if err != nil {
		return fmt.Errorf("failed to insert text log step: %w", mapError(err))
	}
	step.ID, err = res.LastInsertId()
	return err
}

func (s *TextLogStorage) CreateTextLogErrors(ctx context.Context, errs []*models.TextLogError) error {
	return s.db.RunInTx(ctx, func(ctx context.Context) error {
		for _, tle := range errs {
			res, err := s.db.conn(ctx).ExecContext(ctx,
				`INSERT INTO text_log_error (step_id, line_number, line) VALUES (?, ?, ?)`,
				tle.StepID, tle.LineNumber, tle.Line)
			if err != nil {
				return fmt.Errorf("failed to insert text log error at line %d: %w", tle.LineNumber, mapError(err))
			}
			if tle.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TextLogStorage) ListTextLogErrors(ctx context.Context, jobID int64) ([]*models.TextLogError, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT e.id, e.step_id, e.line_number, e.line FROM text_log_error e
		 JOIN text_log_step st ON st.id = e.step_id
		 WHERE st.job_id = ? ORDER BY st.started_line_number ASC, st.id ASC, e.line_number ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list text log errors: %w", err)
	}
	defer rows.Close()

	var errs []*models.TextLogError
	for rows.Next() {
		var tle models.TextLogError
		if err := rows.Scan(&tle.ID, &tle.StepID, &tle.LineNumber, &tle.Line); err != nil {
			return nil, err
		}
		errs = append(errs, &tle)
	}
	return errs, rows.Err()
}

func (s *TextLogStorage) MaxTextLogErrorID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.db.conn(ctx).QueryRowContext(ctx, `SELECT MAX(id) FROM text_log_error`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to read max text log error id: %w", err)
	}
	return max.Int64, nil
}

func (s *TextLogStorage) GetJobError(ctx context.Context, id int64) (*models.JobError, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx, jobErrorSelect+` WHERE e.id = ?`, id)
	je, err := scanJobError(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get text log error %d: %w", id, mapError(err))
	}
	return je, nil
}

func (s *TextLogStorage) GetJobErrorByFailureLine(ctx context.Context, failureLineID int64) (*models.JobError, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx, jobErrorSelect+` WHERE md.failure_line_id = ?`, failureLineID)
	je, err := scanJobError(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get text log error for failure line %d: %w", failureLineID, mapError(err))
	}
	return je, nil
}

func (s *TextLogStorage) ListJobErrors(ctx context.Context, jobID int64) ([]*models.JobError, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		jobErrorSelect+` WHERE st.job_id = ? ORDER BY st.started_line_number ASC, st.id ASC, e.line_number ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job errors: %w", err)
	}
	return scanJobErrors(rows)
}

func (s *TextLogStorage) ListUnmatchedJobErrors(ctx context.Context, jobID int64) ([]*models.JobError, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		jobErrorSelect+` WHERE st.job_id = ?
			AND NOT EXISTS (SELECT 1 FROM text_log_error_match m WHERE m.text_log_error_id = e.id)
		 ORDER BY st.started_line_number ASC, st.id ASC, e.line_number ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched job errors: %w", err)
	}
	return scanJobErrors(rows)
}

func (s *TextLogStorage) UpsertMetadata(ctx context.Context, md *models.TextLogErrorMetadata) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO text_log_error_metadata (text_log_error_id, failure_line_id, best_classification_id, best_is_verified)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(text_log_error_id) DO UPDATE SET
			failure_line_id = excluded.failure_line_id,
			best_classification_id = excluded.best_classification_id,
			best_is_verified = excluded.best_is_verified`,
		md.TextLogErrorID, nullInt64(md.FailureLineID), nullInt64(md.BestClassificationID), md.BestIsVerified)
	if err != nil {
		return fmt.Errorf("failed to upsert text log error metadata: %w", mapError(err))
	}
	return nil
}

func (s *TextLogStorage) PromoteBestClassification(ctx context.Context, textLogErrorID, classifiedFailureID int64) (bool, error) {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO text_log_error_metadata (text_log_error_id, best_classification_id, best_is_verified)
		 VALUES (?, ?, 0)
		 ON CONFLICT(text_log_error_id) DO UPDATE SET best_classification_id = excluded.best_classification_id
		 WHERE (best_classification_id IS NULL OR best_classification_id = excluded.best_classification_id)
			AND best_is_verified = 0`,
		textLogErrorID, classifiedFailureID)
	if err != nil {
		return false, fmt.Errorf("failed to promote text log error classification: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *TextLogStorage) SetBestClassification(ctx context.Context, textLogErrorID int64, classifiedFailureID *int64, verified bool) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO text_log_error_metadata (text_log_error_id, best_classification_id, best_is_verified)
		 VALUES (?, ?, ?)
		 ON CONFLICT(text_log_error_id) DO UPDATE SET
			best_classification_id = excluded.best_classification_id,
			best_is_verified = excluded.best_is_verified`,
		textLogErrorID, nullInt64(classifiedFailureID), verified)
	if err != nil {
		return fmt.Errorf("failed to set text log error classification: %w", mapError(err))
	}
	return nil
}

func scanJobError(row rowScanner) (*models.JobError, error) {
	var je models.JobError
	var mdID, mdFailureLine, mdBest sql.NullInt64
	var mdVerified sql.NullBool
	var flID, flJob, flLine, flBest, flCreated sql.NullInt64
	var flAction, flTest, flSubtest, flStatus, flExpected, flMessage, flSignature, flLevel sql.NullString
	var flVerified sql.NullBool

	if err := row.Scan(&je.ID, &je.StepID, &je.LineNumber, &je.Line, &je.JobID,
		&mdID, &mdFailureLine, &mdBest, &mdVerified,
		&flID, &flJob, &flLine, &flAction, &flTest, &flSubtest, &flStatus, &flExpected, &flMessage,
		&flSignature, &flLevel, &flBest, &flVerified, &flCreated); err != nil {
		return nil, err
	}

	if mdID.Valid {
		je.Metadata = &models.TextLogErrorMetadata{
			TextLogErrorID:       mdID.Int64,
			FailureLineID:        ptrInt64(mdFailureLine),
			BestClassificationID: ptrInt64(mdBest),
			BestIsVerified:       mdVerified.Bool,
		}
	}

	if flID.Valid {
		je.FailureLine = &models.FailureLine{
			ID:                   flID.Int64,
			JobID:                flJob.Int64,
			Line:                 int(flLine.Int64),
			Action:               flAction.String,
			Test:                 flTest.String,
			Subtest:              flSubtest.String,
			Status:               flStatus.String,
			Expected:             flExpected.String,
			Message:              flMessage.String,
			Signature:            flSignature.String,
			Level:                flLevel.String,
			BestClassificationID: ptrInt64(flBest),
			BestIsVerified:       flVerified.Bool,
			CreatedAt:            fromUnix(flCreated.Int64),
		}
	}

	return &je, nil
}

func scanJobErrors(rows *sql.Rows) ([]*models.JobError, error) {
	defer rows.Close()
	var errs []*models.JobError
	for rows.Next() {
		je, err := scanJobError(rows)
		if err != nil {
			return nil, err
		}
		errs = append(errs, je)
	}
	return errs, rows.Err()
}
