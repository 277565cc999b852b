package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"scenario-service/internal/models"
	"scenario-service/internal/pipeline"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runTotal       int
	runBatchSize   int
	runContext     string
	runAutoApprove bool
	runMaxRetries  int
	runBackup      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a fixed number of scenarios in batches",
	Long: `Generates --total scenarios in ceiling(total/batch-size) batches. A batch
that adds nothing is retried with the judge's feedback and the duplication
guidance folded into the generation context.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTotal <= 0 {
			return fmt.Errorf("--total must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if runBackup {
			if err := a.Dataset.Backup(); err != nil {
				return err
			}
		}

		if runAutoApprove {
			fmt.Println(color.YellowString("Auto-approve enabled: validation is skipped"))
		}

		res, err := a.Pipeline.RunBatch(ctx, pipeline.RunRequest{
			Total:       runTotal,
			BatchSize:   runBatchSize,
			Context:     runContext,
			AutoApprove: runAutoApprove,
			MaxRetries:  runMaxRetries,
			Recorder:    pipeline.BatchRecorderFunc(printBatch),
		})
		if res != nil {
			printRunResult(res)
		}
		return err
	},
}

func init() {
	runCmd.Flags().IntVarP(&runTotal, "total", "n", 0, "number of scenarios to generate")
	runCmd.Flags().IntVarP(&runBatchSize, "batch-size", "b", 0, "scenarios per batch (default from config)")
	runCmd.Flags().StringVar(&runContext, "context", "", "extra guidance for the generator")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "skip validation (use with caution)")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "attempts per batch (default from config)")
	runCmd.Flags().BoolVar(&runBackup, "backup", false, "copy the dataset to the backup path first")
}

func printBatch(_ context.Context, rec models.BatchRecord) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	decision := green(string(rec.Decision))
	if rec.Decision == models.BatchRejected {
		decision = red(string(rec.Decision))
	}

	fmt.Printf("Batch %d (attempt %d): %s  generated=%d approved=%d duplicates=%d added=%d %s\n",
		rec.BatchNumber, rec.Attempt, decision,
		rec.Generated, rec.Approved, rec.Duplicates, rec.Added,
		gray(fmt.Sprintf("sample=%d failure=%.1f%% escalated=%t", rec.SampleSize, rec.FailureRate, rec.Escalated)))
}
