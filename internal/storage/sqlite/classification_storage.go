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

// ClassificationStorage implements interfaces.ClassificationStorage
type ClassificationStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewClassificationStorage creates a new classified failure storage instance
func NewClassificationStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ClassificationStorage {
	return &ClassificationStorage{db: db, logger: logger}
}

func (s *ClassificationStorage) CreateClassifiedFailure(ctx context.Context, bugNumber *int64) (*models.ClassifiedFailure, error) {
	now := unixNow()
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO classified_failure (bug_number, created_at, updated_at) VALUES (?, ?, ?)`,
		nullInt64(bugNumber), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create classified failure: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.ClassifiedFailure{
		ID:        id,
		BugNumber: bugNumber,
		CreatedAt: fromUnix(now),
		UpdatedAt: fromUnix(now),
	}, nil
}

func (s *ClassificationStorage) GetClassifiedFailure(ctx context.Context, id int64) (*models.ClassifiedFailure, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, bug_number, created_at, updated_at FROM classified_failure WHERE id = ?`, id)
	cf, err := scanClassifiedFailure(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get classified failure %d: %w", id, mapError(err))
	}
	return cf, nil
}

func (s *ClassificationStorage) GetClassifiedFailureByBug(ctx context.Context, bugNumber int64) (*models.ClassifiedFailure, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, bug_number, created_at, updated_at FROM classified_failure WHERE bug_number = ?`, bugNumber)
	cf, err := scanClassifiedFailure(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get classified failure for bug %d: %w", bugNumber, mapError(err))
	}
	return cf, nil
}

func (s *ClassificationStorage) SetBugNumber(ctx context.Context, id int64, bugNumber int64) error {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE classified_failure SET bug_number = ?, updated_at = ? WHERE id = ?`, bugNumber, unixNow(), id)
	if err != nil {
		return fmt.Errorf("failed to set bug number: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("classified failure %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// mergeStep re-points loser's rows at winner. Where winner already holds the same
// (line, matcher) match, the higher score is kept on winner's row and loser's row dropped.
type mergeStep struct {
	query string
	args  func(loser, winner int64) []interface{}
}

func loserWinner(loser, winner int64) []interface{} { return []interface{}{loser, winner} }
func winnerLoser(loser, winner int64) []interface{} { return []interface{}{winner, loser} }

func keepBestScore(table, lineColumn string) mergeStep {
	return mergeStep{
		query: fmt.Sprintf(`UPDATE %[1]s SET score = MAX(score, (
			SELECT l.score FROM %[1]s l
			WHERE l.classified_failure_id = ?1
				AND l.%[2]s = %[1]s.%[2]s
				AND l.matcher_id = %[1]s.matcher_id))
		 WHERE classified_failure_id = ?2 AND EXISTS (
			SELECT 1 FROM %[1]s l
			WHERE l.classified_failure_id = ?1
				AND l.%[2]s = %[1]s.%[2]s
				AND l.matcher_id = %[1]s.matcher_id)`, table, lineColumn),
		args: loserWinner,
	}
}

func dropDuplicates(table, lineColumn string) mergeStep {
	return mergeStep{
		query: fmt.Sprintf(`DELETE FROM %[1]s
		 WHERE classified_failure_id = ?1 AND EXISTS (
			SELECT 1 FROM %[1]s w
			WHERE w.classified_failure_id = ?2
				AND w.%[2]s = %[1]s.%[2]s
				AND w.matcher_id = %[1]s.matcher_id)`, table, lineColumn),
		args: loserWinner,
	}
}

func repoint(table, column string) mergeStep {
	return mergeStep{
		query: fmt.Sprintf(`UPDATE %[1]s SET %[2]s = ? WHERE %[2]s = ?`, table, column),
		args:  winnerLoser,
	}
}

var mergeSteps = []mergeStep{
	keepBestScore("text_log_error_match", "text_log_error_id"),
	dropDuplicates("text_log_error_match", "text_log_error_id"),
	repoint("text_log_error_match", "classified_failure_id"),
	keepBestScore("failure_match", "failure_line_id"),
	dropDuplicates("failure_match", "failure_line_id"),
	repoint("failure_match", "classified_failure_id"),
	repoint("failure_line", "best_classification_id"),
	repoint("text_log_error_metadata", "best_classification_id"),
	repoint("job_note", "classified_failure_id"),
	{
		query: `DELETE FROM classified_failure WHERE id = ?`,
		args:  func(loser, _ int64) []interface{} { return []interface{}{loser} },
	},
}

func (s *ClassificationStorage) Merge(ctx context.Context, loserID, winnerID int64) error {
	if loserID == winnerID {
		return nil
	}

	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		for _, step := range mergeSteps {
			if _, err := s.db.conn(ctx).ExecContext(ctx, step.query, step.args(loserID, winnerID)...); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrIntegrity) {
			return fmt.Errorf("%w: %d into %d: %v", models.ErrCannotMerge, loserID, winnerID, err)
		}
		return fmt.Errorf("failed to merge classified failure %d into %d: %w", loserID, winnerID, err)
	}

	s.logger.Info().
		Int64("loser_id", loserID).
		Int64("winner_id", winnerID).
		Msg("Merged classified failures")
	return nil
}

func scanClassifiedFailure(row rowScanner) (*models.ClassifiedFailure, error) {
	var cf models.ClassifiedFailure
	var bug sql.NullInt64
	var created, updated int64
	if err := row.Scan(&cf.ID, &bug, &created, &updated); err != nil {
		return nil, err
	}
	cf.BugNumber = ptrInt64(bug)
	cf.CreatedAt = fromUnix(created)
	cf.UpdatedAt = fromUnix(updated)
	return &cf, nil
}
