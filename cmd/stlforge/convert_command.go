package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stlforge/internal/config"
	"stlforge/internal/fileutil"
	"stlforge/internal/jobs"
	"stlforge/internal/script"
	"stlforge/internal/workflow"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var threshold int
	var noSmoothing bool
	var smoothingIterations int
	var decimation float64

	cmd := &cobra.Command{
		Use:   "convert <slice-dir>",
		Short: "Convert a directory of image slices into an STL mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			return ctx.withManager(logger, func(cfg *config.Config, manager *workflow.Manager) error {
				out := cmd.OutOrStdout()

				uploadID := uuid.NewString()
				staged, err := fileutil.CopyDirFlat(args[0], cfg.UploadPath(uploadID))
				if err != nil {
					return fmt.Errorf("stage upload from %s: %w", args[0], err)
				}
				if staged == 0 {
					return fmt.Errorf("no files found in %s", args[0])
				}

				// Only flags the user actually set override the
				// configured defaults: --decimation 0 is a valid
				// request for an undecimated mesh.
				params := script.DefaultParams(cfg)
				params.Smoothing = !noSmoothing
				flags := cmd.Flags()
				if flags.Changed("threshold") {
					params.Threshold = threshold
				}
				if flags.Changed("smoothing-iterations") {
					params.SmoothingIterations = smoothingIterations
				}
				if flags.Changed("decimation") {
					params.Decimation = decimation
				}
				job, err := manager.StartConversion(cmd.Context(), uploadID, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Accepted job %s (%d files staged)\n", job.ID, staged)

				final, err := pollJob(cmd.Context(), manager, cfg, job.ID, out)
				if err != nil {
					return err
				}
				if final.Status != jobs.StatusCompleted {
					return fmt.Errorf("conversion failed: %s", final.ErrorMessage)
				}
				fmt.Fprintf(out, "Wrote %s\n", final.OutputFile)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", 0, "Segmentation threshold (defaults from configuration)")
	cmd.Flags().BoolVar(&noSmoothing, "no-smoothing", false, "Disable mesh smoothing")
	cmd.Flags().IntVar(&smoothingIterations, "smoothing-iterations", 0, "Smoothing iterations (defaults from configuration)")
	cmd.Flags().Float64Var(&decimation, "decimation", 0, "Mesh decimation target in [0, 1), 0 disables decimation (defaults from configuration)")
	return cmd
}

// pollJob reports progress until the job reaches a terminal state.
func pollJob(ctx context.Context, manager *workflow.Manager, cfg *config.Config, jobID string, out io.Writer) (*jobs.Job, error) {
	interval := time.Duration(cfg.Workflow.StatusPollInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	lastProgress := -1
	for {
		job, err := manager.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Progress != lastProgress {
			lastProgress = job.Progress
			fmt.Fprintf(out, "%3d%%  %s\n", job.Progress, job.Message)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
