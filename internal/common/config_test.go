package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigIsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 0.7, config.Classifier.CutoffRatio)
	assert.Equal(t, 0.9, config.Classifier.GoodEnoughRatio)
	assert.Equal(t, int64(20000), config.Classifier.WindowSize)
	assert.Equal(t, 1024, config.Classifier.MessagePrefixLimit)
	assert.Equal(t, 35, config.Classifier.FailureLinesCutoff)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[classifier]
cutoff_ratio = 0.6
window_size = 500

[queue]
concurrency = 2
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[classifier]
cutoff_ratio = 0.5
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 0.5, config.Classifier.CutoffRatio)
	assert.Equal(t, int64(500), config.Classifier.WindowSize)
	assert.Equal(t, 2, config.Queue.Concurrency)
	assert.Equal(t, 0.9, config.Classifier.GoodEnoughRatio, "unset keys keep defaults")
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	t.Setenv("AUTOCLASS_CUTOFF_RATIO", "0.75")
	t.Setenv("AUTOCLASS_SEARCH_ENABLED", "false")
	t.Setenv("AUTOCLASS_LOG_OUTPUT", "stdout, file")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 0.75, config.Classifier.CutoffRatio)
	assert.False(t, config.Search.Enabled)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cutoff above one", func(c *Config) { c.Classifier.CutoffRatio = 1.5 }},
		{"zero window", func(c *Config) { c.Classifier.WindowSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Queue.Concurrency = 0 }},
		{"bad duration", func(c *Config) { c.Classifier.PreciseTimeBudget = "soon" }},
		{"bad cron", func(c *Config) { c.Scheduler.SweepSchedule = "every minute" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, ParseDuration("500ms", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("nope", time.Second))
	assert.Equal(t, time.Second, ParseDuration("-1s", time.Second))
}
