package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	_ "modernc.org/sqlite"
)

// SQLiteDB owns the relational store of jobs, lines, matches and classified failures
type SQLiteDB struct {
	db     *sql.DB
	logger arbor.ILogger
	config *common.SQLiteConfig
}

// NewSQLiteDB opens the database at config.Path and brings its schema up to date
func NewSQLiteDB(logger arbor.ILogger, config *common.SQLiteConfig) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Transactions travel in the context, so every statement must share one connection
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{db: db, logger: logger, config: config}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, err := s.migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().
		Str("path", config.Path).
		Bool("wal", config.WALMode).
		Int("schema_version", version).
		Msg("SQLite database initialized")
	return s, nil
}

// dsn builds a modernc file URI. Pragmas in the URI are applied to every new connection.
// Transactions take the write lock up front so concurrent writers queue on busy_timeout
// instead of failing on lock upgrade.
func dsn(config *common.SQLiteConfig) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeoutMS))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	if config.CacheSizeMB > 0 {
		q.Add("_pragma", fmt.Sprintf("cache_size(-%d)", config.CacheSizeMB*1024))
	}
	if config.WALMode {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	return "file:" + config.Path + "?" + q.Encode()
}

// DB returns the underlying database connection
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
