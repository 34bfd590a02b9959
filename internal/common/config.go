package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Classifier  ClassifierConfig `toml:"classifier"`
	Search      SearchConfig     `toml:"search"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Metrics     MetricsConfig    `toml:"metrics"`
	Logging     LoggingConfig    `toml:"logging"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig holds the relational store settings
type SQLiteConfig struct {
	Path          string `toml:"path" validate:"required"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" validate:"gte=0"`
	WALMode       bool   `toml:"wal_mode"`
	CacheSizeMB   int    `toml:"cache_size_mb" validate:"gte=0"`
}

// BadgerConfig represents BadgerDB-specific configuration (Index documents and task queue)
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	GCSchedule     string `toml:"gc_schedule"`      // Cron schedule for value log GC, empty disables
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency" validate:"gte=1"`
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive" validate:"gte=1"` // Per-task retry limit
	QueueName         string `toml:"queue_name" validate:"required"`
	InitialBackoff    string `toml:"initial_backoff"`
	MaxBackoff        string `toml:"max_backoff"`
}

// ClassifierConfig holds the thresholds and budgets read by the matchers and autoclassifier
type ClassifierConfig struct {
	CutoffRatio          float64 `toml:"cutoff_ratio" validate:"gte=0,lte=1"`
	GoodEnoughRatio      float64 `toml:"good_enough_ratio" validate:"gte=0,lte=1"`
	WindowSize           int64   `toml:"window_size" validate:"gt=0"`
	PreciseTimeBudget    string  `toml:"precise_time_budget"`
	CrashTimeBudget      string  `toml:"crash_time_budget"`
	CrashOtherTestFactor float64 `toml:"crash_other_test_factor" validate:"gt=0,lte=1"`
	MessagePrefixLimit   int     `toml:"message_prefix_limit" validate:"gt=0"`
	FailureLinesCutoff   int     `toml:"failure_lines_cutoff" validate:"gt=0"`
}

// SearchConfig controls access to the phrase-match Index
type SearchConfig struct {
	Enabled    bool    `toml:"enabled"`
	Timeout    string  `toml:"timeout"`    // Per-call timeout
	RateLimit  float64 `toml:"rate_limit" validate:"gte=0"` // Calls per second, 0 = unlimited
	Burst      int     `toml:"burst" validate:"gte=0"`
	MaxResults int     `toml:"max_results" validate:"gt=0"`
}

// SchedulerConfig controls the periodic sweeps that re-enqueue stalled jobs
type SchedulerConfig struct {
	Enabled       bool   `toml:"enabled"`
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule format
	StaleAfter    string `toml:"stale_after"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir"`         // Log directory when file output is enabled
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/autoclass.db",
				BusyTimeoutMS: 5000,
				WALMode:       true,
				CacheSizeMB:   64,
			},
			Badger: BadgerConfig{
				Path:       "./data/badger",
				GCSchedule: "17 * * * *",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        5,
			QueueName:         "autoclass",
			InitialBackoff:    "2s",
			MaxBackoff:        "5m",
		},
		Classifier: ClassifierConfig{
			CutoffRatio:          0.7,
			GoodEnoughRatio:      0.9,
			WindowSize:           20000,
			PreciseTimeBudget:    "500ms",
			CrashTimeBudget:      "250ms",
			CrashOtherTestFactor: 0.8,
			MessagePrefixLimit:   1024,
			FailureLinesCutoff:   35,
		},
		Search: SearchConfig{
			Enabled:    true,
			Timeout:    "2s",
			RateLimit:  50,
			Burst:      10,
			MaxResults: 100,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepSchedule: "*/5 * * * *",
			StaleAfter:    "15m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9465",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
			Dir:        "./logs",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies AUTOCLASS_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AUTOCLASS_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if path := os.Getenv("AUTOCLASS_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("AUTOCLASS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Queue configuration
	if concurrency := os.Getenv("AUTOCLASS_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if maxReceive := os.Getenv("AUTOCLASS_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if visibilityTimeout := os.Getenv("AUTOCLASS_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}

	// Classifier thresholds
	if cutoff := os.Getenv("AUTOCLASS_CUTOFF_RATIO"); cutoff != "" {
		if v, err := strconv.ParseFloat(cutoff, 64); err == nil {
			config.Classifier.CutoffRatio = v
		}
	}
	if goodEnough := os.Getenv("AUTOCLASS_GOOD_ENOUGH_RATIO"); goodEnough != "" {
		if v, err := strconv.ParseFloat(goodEnough, 64); err == nil {
			config.Classifier.GoodEnoughRatio = v
		}
	}
	if window := os.Getenv("AUTOCLASS_WINDOW_SIZE"); window != "" {
		if v, err := strconv.ParseInt(window, 10, 64); err == nil {
			config.Classifier.WindowSize = v
		}
	}

	// Search configuration
	if enabled := os.Getenv("AUTOCLASS_SEARCH_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Search.Enabled = v
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("AUTOCLASS_SCHEDULER_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = v
		}
	}

	// Metrics configuration
	if address := os.Getenv("AUTOCLASS_METRICS_ADDRESS"); address != "" {
		config.Metrics.Address = address
		config.Metrics.Enabled = true
	}

	// Logging configuration
	if level := os.Getenv("AUTOCLASS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("AUTOCLASS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, logLevel string, concurrency int) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if concurrency > 0 {
		config.Queue.Concurrency = concurrency
	}
}

// Validate checks field constraints and the duration/cron strings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"queue.poll_interval":            c.Queue.PollInterval,
		"queue.visibility_timeout":       c.Queue.VisibilityTimeout,
		"queue.initial_backoff":          c.Queue.InitialBackoff,
		"queue.max_backoff":              c.Queue.MaxBackoff,
		"classifier.precise_time_budget": c.Classifier.PreciseTimeBudget,
		"classifier.crash_time_budget":   c.Classifier.CrashTimeBudget,
		"search.timeout":                 c.Search.Timeout,
		"scheduler.stale_after":          c.Scheduler.StaleAfter,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s=%q: %w", key, value, err)
		}
	}

	if c.Scheduler.Enabled {
		if err := ValidateSweepSchedule(c.Scheduler.SweepSchedule); err != nil {
			return fmt.Errorf("invalid configuration: scheduler.sweep_schedule: %w", err)
		}
		if c.Storage.Badger.GCSchedule != "" {
			if err := ValidateSweepSchedule(c.Storage.Badger.GCSchedule); err != nil {
				return fmt.Errorf("invalid configuration: storage.badger.gc_schedule: %w", err)
			}
		}
	}

	return nil
}

// ValidateSweepSchedule validates a standard five-field cron expression
func ValidateSweepSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDuration parses a configured duration, falling back when empty or malformed
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
