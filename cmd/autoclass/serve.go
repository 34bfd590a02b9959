package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/ternarybob/autoclass/internal/app"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task workers, stale job sweep and metrics endpoint",
	Long:  `Starts the queue workers that cross-reference, autoclassify and detect intermittents, plus the scheduled sweep that re-enqueues stalled jobs.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runServe)
	},
}

func runServe(ctx context.Context, application *app.App) error {
	if err := application.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if application.MetricsServer != nil {
		g.Go(func() error {
			return application.MetricsServer.Run(ctx)
		})
	}

	g.Go(func() error {
		logger.Info().
			Int("concurrency", config.Queue.Concurrency).
			Bool("scheduler_enabled", config.Scheduler.Enabled).
			Msg("Autoclass ready - Press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info().Msg("Shutting down")
		return nil
	})

	return g.Wait()
}
