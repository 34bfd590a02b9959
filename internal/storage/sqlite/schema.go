package sqlite

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS job (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL,
		push_id INTEGER NOT NULL,
		result TEXT NOT NULL,
		autoclassify_status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS classified_failure (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bug_number INTEGER UNIQUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS matcher (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS failure_line (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES job(id) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		action TEXT NOT NULL,
		test TEXT NOT NULL DEFAULT '',
		subtest TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		expected TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		best_classification_id INTEGER REFERENCES classified_failure(id) ON DELETE SET NULL,
		best_is_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE (job_id, line)
	)`,

	`CREATE TABLE IF NOT EXISTS text_log_step (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES job(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		started_line_number INTEGER NOT NULL DEFAULT 0,
		finished_line_number INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS text_log_error (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		step_id INTEGER NOT NULL REFERENCES text_log_step(id) ON DELETE CASCADE,
		line_number INTEGER NOT NULL,
		line TEXT NOT NULL,
		UNIQUE (step_id, line_number)
	)`,

	`CREATE TABLE IF NOT EXISTS text_log_error_metadata (
		text_log_error_id INTEGER PRIMARY KEY REFERENCES text_log_error(id) ON DELETE CASCADE,
		failure_line_id INTEGER REFERENCES failure_line(id) ON DELETE SET NULL,
		best_classification_id INTEGER REFERENCES classified_failure(id) ON DELETE SET NULL,
		best_is_verified INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS text_log_error_match (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text_log_error_id INTEGER NOT NULL REFERENCES text_log_error(id) ON DELETE CASCADE,
		classified_failure_id INTEGER NOT NULL REFERENCES classified_failure(id),
		matcher_id INTEGER NOT NULL REFERENCES matcher(id),
		score REAL NOT NULL CHECK (score >= 0 AND score <= 1),
		UNIQUE (text_log_error_id, classified_failure_id, matcher_id)
	)`,

	`CREATE TABLE IF NOT EXISTS failure_match (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		failure_line_id INTEGER NOT NULL REFERENCES failure_line(id) ON DELETE CASCADE,
		classified_failure_id INTEGER NOT NULL REFERENCES classified_failure(id),
		matcher_id INTEGER NOT NULL REFERENCES matcher(id),
		score REAL NOT NULL CHECK (score >= 0 AND score <= 1),
		UNIQUE (failure_line_id, classified_failure_id, matcher_id)
	)`,

	`CREATE TABLE IF NOT EXISTS job_note (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES job(id) ON DELETE CASCADE,
		failure_classification TEXT NOT NULL,
		classified_failure_id INTEGER REFERENCES classified_failure(id) ON DELETE SET NULL,
		user TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS bug_job_map (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES job(id) ON DELETE CASCADE,
		bug_id INTEGER NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE (job_id, bug_id)
	)`,
}

var schemaV2 = []string{
	`CREATE INDEX IF NOT EXISTS idx_job_push_signature ON job(push_id, signature)`,
	`CREATE INDEX IF NOT EXISTS idx_job_status_updated ON job(autoclassify_status, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_failure_line_test ON failure_line(test, subtest, status, expected)`,
	`CREATE INDEX IF NOT EXISTS idx_failure_line_signature ON failure_line(signature, test)`,
	`CREATE INDEX IF NOT EXISTS idx_failure_line_best ON failure_line(best_classification_id)`,
	`CREATE INDEX IF NOT EXISTS idx_text_log_step_job ON text_log_step(job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_failure_line ON text_log_error_metadata(failure_line_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_best ON text_log_error_metadata(best_classification_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tle_match_cf ON text_log_error_match(classified_failure_id)`,
	`CREATE INDEX IF NOT EXISTS idx_failure_match_cf ON failure_match(classified_failure_id)`,
	`CREATE INDEX IF NOT EXISTS idx_job_note_job ON job_note(job_id)`,
}
