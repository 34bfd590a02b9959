package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_FileOutputCreatesDir(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Output = []string{"file"}
	config.Logging.Dir = filepath.Join(t.TempDir(), "nested", "logs")

	logger := InitLogger(config)
	require.NotNil(t, logger)
	logger.Info().Msg("hello")

	info, err := os.Stat(config.Logging.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInitLogger_UnknownOutputFallsBackToConsole(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Output = []string{"syslog"}

	assert.NotNil(t, InitLogger(config))
}
