package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// JobStorage implements interfaces.JobStorage
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{db: db, logger: logger}
}

const jobColumns = `id, guid, signature, push_id, result, autoclassify_status, created_at, updated_at`

func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if job.AutoclassifyStatus == "" {
		job.AutoclassifyStatus = models.StatusPending
	}
	now := unixNow()

	var res sql.Result
	var err error
	if job.ID > 0 {
		res, err = s.db.conn(ctx).ExecContext(ctx,
			`INSERT INTO job (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.GUID, job.Signature, job.PushID, job.Result, string(job.AutoclassifyStatus), now, now)
	} else {
		res, err = s.db.conn(ctx).ExecContext(ctx,
			`INSERT INTO job (guid, signature, push_id, result, autoclassify_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.GUID, job.Signature, job.PushID, job.Result, string(job.AutoclassifyStatus), now, now)
	}
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", mapError(err))
	}

	if job.ID == 0 {
		if job.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read job id: %w", err)
		}
	}
	job.CreatedAt = fromUnix(now)
	job.UpdatedAt = job.CreatedAt
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", id, mapError(err))
	}
	return job, nil
}

func (s *JobStorage) AdvanceStatus(ctx context.Context, id int64, from, to models.AutoclassifyStatus) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatus, from, to)
	}

	res, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE job SET autoclassify_status = ?, updated_at = ? WHERE id = ? AND autoclassify_status = ?`,
		string(to), unixNow(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	s.logger.Debug().
		Int64("job_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Bool("applied", n > 0).
		Msg("Autoclassify status transition")

	return n > 0, nil
}

func (s *JobStorage) ListSiblings(ctx context.Context, job *models.Job) ([]*models.Job, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT `+jobColumns+` FROM job WHERE push_id = ? AND signature = ? AND id != ? ORDER BY id ASC`,
		job.PushID, job.Signature, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sibling jobs: %w", err)
	}
	return scanJobs(rows)
}

func (s *JobStorage) ListStale(ctx context.Context, status models.AutoclassifyStatus, before time.Time, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT `+jobColumns+` FROM job WHERE autoclassify_status = ? AND updated_at < ? ORDER BY id ASC LIMIT ?`,
		string(status), before.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return scanJobs(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var status string
	var created, updated int64
	if err := row.Scan(&job.ID, &job.GUID, &job.Signature, &job.PushID, &job.Result, &status, &created, &updated); err != nil {
		return nil, err
	}
	job.AutoclassifyStatus = models.AutoclassifyStatus(status)
	job.CreatedAt = fromUnix(created)
	job.UpdatedAt = fromUnix(updated)
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*models.Job, error) {
	defer rows.Close()
	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
