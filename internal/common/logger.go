package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const defaultLogTimeFormat = "15:04:05"

// InitLogger builds the arbor logger for the [logging] section.
// Console output is always kept when no file writer could be configured.
func InitLogger(config *Config) arbor.ILogger {
	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultLogTimeFormat
	}

	wantFile, wantConsole := false, false
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			wantFile = true
		case "stdout", "console":
			wantConsole = true
		}
	}

	logger := arbor.NewLogger()

	fileConfigured := false
	if wantFile {
		if path, err := logFilePath(config.Logging.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, logging to console\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   path,
				TimeFormat: timeFormat,
				MaxSize:    100 * 1024 * 1024, // 100 MB
				MaxBackups: 3,
				TextOutput: true,
			})
			fileConfigured = true
		}
	}

	if wantConsole || !fileConfigured {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: timeFormat,
			TextOutput: true,
		})
	}

	return logger.WithLevelFromString(config.Logging.Level)
}

func logFilePath(dir string) (string, error) {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "autoclass.log"), nil
}
