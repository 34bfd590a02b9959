// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 9:40:02 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/app"
	"github.com/ternarybob/autoclass/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	logLevel    string
	concurrency int

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "autoclass",
	Short:         "Autoclassify CI test failures against known classified failures",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Queue worker concurrency (overrides config)")

	rootCmd.AddCommand(serveCmd, classifyCmd, detectCmd, crossrefCmd, verifyCmd, ingestCmd, sweepCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Command failed")
		} else {
			arbor.NewLogger().Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

// setup runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
// 4. Print banner
func setup() error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("autoclass.toml"); err == nil {
			configFiles = append(configFiles, "autoclass.toml")
		} else if _, err := os.Stat("deployments/local/autoclass.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/autoclass.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	common.ApplyFlagOverrides(config, logLevel, concurrency)

	logger = common.InitLogger(config)

	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration")

	return nil
}

// withApp builds the application, runs fn with a context cancelled on SIGINT/SIGTERM,
// and closes the application afterwards
func withApp(fn func(ctx context.Context, application *app.App) error) error {
	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, application)
}
