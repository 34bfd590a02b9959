package sqlite

import (
	"context"
	"fmt"
)

// migration is one schema version. The applied version is kept in PRAGMA user_version.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{version: 1, name: "initial_schema", statements: schemaV1},
	{version: 2, name: "candidate_indexes", statements: schemaV2},
}

// migrate applies every migration newer than the stored user_version and returns the resulting version
func (s *SQLiteDB) migrate(ctx context.Context) (int, error) {
	var current int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	latest := migrations[len(migrations)-1].version
	if current > latest {
		return current, fmt.Errorf("database schema version %d is newer than supported version %d", current, latest)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			for _, stmt := range m.statements {
				if _, err := s.conn(ctx).ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			// user_version is part of the database header, so it commits with the schema change
			_, err := s.conn(ctx).ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version))
			return err
		})
		if err != nil {
			return current, fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}

		s.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
		current = m.version
	}

	return current, nil
}
