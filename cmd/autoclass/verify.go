package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/autoclass/internal/app"
	"github.com/ternarybob/autoclass/internal/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Confirm or override the best classification of an error line",
	Long: `Records a human verification. Target a line with --text-log-error or --failure-line,
or a whole single-failure job with --job. Pass --classification and/or --bug to pick the
classification; with neither the line is marked ignorable.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	verifyTextLogError   int64
	verifyFailureLine    int64
	verifyJob            int64
	verifyClassification int64
	verifyBug            int64
	verifyUser           string
)

func init() {
	verifyCmd.Flags().Int64Var(&verifyTextLogError, "text-log-error", 0, "Text log error id to verify")
	verifyCmd.Flags().Int64Var(&verifyFailureLine, "failure-line", 0, "Failure line id to verify")
	verifyCmd.Flags().Int64Var(&verifyJob, "job", 0, "Classify the only failure of this job")
	verifyCmd.Flags().Int64Var(&verifyClassification, "classification", 0, "Classified failure id to choose")
	verifyCmd.Flags().Int64Var(&verifyBug, "bug", 0, "Bug number to associate")
	verifyCmd.Flags().StringVar(&verifyUser, "user", "", "Verifying user (required)")
	verifyCmd.MarkFlagRequired("user")
	verifyCmd.MarkFlagsMutuallyExclusive("text-log-error", "failure-line", "job")
}

func runVerify(cmd *cobra.Command, args []string) error {
	var bug *int64
	if cmd.Flags().Changed("bug") {
		bug = &verifyBug
	}

	return withApp(func(ctx context.Context, application *app.App) error {
		var result *models.VerificationResult
		var err error

		if verifyJob > 0 {
			result, err = application.VerificationService.ClassifyJob(ctx, verifyJob, bug, verifyUser)
		} else {
			req := &models.VerificationRequest{
				TextLogErrorID: verifyTextLogError,
				FailureLineID:  verifyFailureLine,
				BugNumber:      bug,
				User:           verifyUser,
			}
			if cmd.Flags().Changed("classification") {
				req.ClassificationID = &verifyClassification
			}
			result, err = application.VerificationService.Verify(ctx, req)
		}
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("job %d does not have exactly one classifiable failure", verifyJob)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	})
}
