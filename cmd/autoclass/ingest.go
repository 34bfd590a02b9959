package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/autoclass/internal/app"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/ternarybob/autoclass/internal/services/crossref"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Load parsed jobs from JSON files",
	Long:  `Each file holds one job with its failure lines and text log steps, as produced by the log parsers.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var ingestEnqueue bool

func init() {
	ingestCmd.Flags().BoolVar(&ingestEnqueue, "enqueue", true, "Queue cross-referencing for each ingested job")
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, application *app.App) error {
		for _, path := range args {
			req, err := readIngestRequest(path)
			if err != nil {
				return err
			}

			job, err := application.CrossRefService.Ingest(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			if ingestEnqueue && job.IsFailure() {
				msg := models.QueueMessage{JobID: job.ID, Type: models.TaskCrossReference}
				if err := application.QueueManager.Enqueue(ctx, msg); err != nil {
					return err
				}
			}
			fmt.Printf("%s: job %d\n", path, job.ID)
		}
		return nil
	})
}

func readIngestRequest(path string) (*crossref.IngestRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var req crossref.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &req, nil
}
