package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Autoclass", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("badger_path", config.Storage.Badger.Path).
		Int("concurrency", config.Queue.Concurrency).
		Bool("search_enabled", config.Search.Enabled).
		Bool("scheduler_enabled", config.Scheduler.Enabled).
		Msg("Autoclass starting")
}
