package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// MatcherStorage implements interfaces.MatcherStorage
type MatcherStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewMatcherStorage creates a new matcher catalog storage instance
func NewMatcherStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MatcherStorage {
	return &MatcherStorage{db: db, logger: logger}
}

func (s *MatcherStorage) RegisterMatcher(ctx context.Context, name string) (*models.Matcher, error) {
	if _, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO matcher (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("failed to register matcher %s: %w", name, mapError(err))
	}

	m := &models.Matcher{Name: name}
	if err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM matcher WHERE name = ?`, name).Scan(&m.ID); err != nil {
		return nil, fmt.Errorf("failed to read matcher %s: %w", name, mapError(err))
	}
	return m, nil
}

func (s *MatcherStorage) ListMatchers(ctx context.Context) ([]*models.Matcher, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx, `SELECT id, name FROM matcher ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list matchers: %w", err)
	}
	defer rows.Close()

	var matchers []*models.Matcher
	for rows.Next() {
		var m models.Matcher
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		matchers = append(matchers, &m)
	}
	return matchers, rows.Err()
}
