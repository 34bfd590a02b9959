package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ternarybob/autoclass/internal/app"
)

var classifyCmd = &cobra.Command{
	Use:   "classify JOB_ID",
	Short: "Autoclassify a cross-referenced job now, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, application *app.App) error {
			if err := application.Autoclassify(ctx, jobID); err != nil {
				return err
			}
			job, err := application.StorageManager.JobStorage().GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			fmt.Printf("job %d: %s\n", job.ID, job.AutoclassifyStatus)
			return nil
		})
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect JOB_ID",
	Short: "Detect intermittent failures on a job's sibling runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, application *app.App) error {
			n, err := application.DetectIntermittents(ctx, jobID)
			if err != nil {
				return err
			}
			fmt.Printf("job %d: %d intermittent failures promoted\n", jobID, n)
			return nil
		})
	},
}

var crossrefCmd = &cobra.Command{
	Use:   "crossref JOB_ID",
	Short: "Pair a pending job's structured failure lines with its text log errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, application *app.App) error {
			advanced, err := application.CrossRefService.CrossReference(ctx, jobID)
			if err != nil {
				return err
			}
			fmt.Printf("job %d: cross-referenced=%t\n", jobID, advanced)
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-enqueue stalled jobs once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, application *app.App) error {
			n, err := application.Sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d tasks enqueued\n", n)
			return nil
		})
	},
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
