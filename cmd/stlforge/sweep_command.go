package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stlforge/internal/config"
	"stlforge/internal/jobs"
	"stlforge/internal/retention"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove aged uploads, outputs, and job records now",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				manager := retention.NewManager(cfg, store, retention.WithLogger(logger))
				result, err := manager.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d uploads, %d outputs, %d work directories, %d logs, %d job records\n",
					result.UploadsRemoved, result.OutputsRemoved, result.WorkRemoved,
					result.LogsRemoved, result.JobsDeleted)
				if result.Failures > 0 {
					fmt.Fprintf(out, "%d removals failed; see the log for details\n", result.Failures)
				}
				return nil
			})
		},
	}
}
