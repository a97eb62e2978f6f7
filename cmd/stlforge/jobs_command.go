package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stlforge/internal/config"
	"stlforge/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(cmd, ctx, "")
		},
	}

	var statusFlag string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(cmd, ctx, statusFlag)
		},
	}
	listCmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, completed, failed)")

	showCmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one conversion job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				job, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:      %s\n", job.ID)
				fmt.Fprintf(out, "Upload:   %s\n", job.UploadID)
				fmt.Fprintf(out, "Status:   %s (%d%%)\n", job.Status, job.Progress)
				fmt.Fprintf(out, "Message:  %s\n", job.Message)
				if job.OutputFile != "" {
					fmt.Fprintf(out, "Output:   %s\n", job.OutputFile)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
				}
				if job.SeriesJSON != "" {
					fmt.Fprintf(out, "Series:   %s\n", job.SeriesJSON)
				}
				if job.ParamsJSON != "" {
					fmt.Fprintf(out, "Params:   %s\n", job.ParamsJSON)
				}
				fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Updated:  %s\n", job.UpdatedAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	jobsCmd.AddCommand(listCmd)
	jobsCmd.AddCommand(showCmd)
	return jobsCmd
}

func runJobsList(cmd *cobra.Command, ctx *commandContext, statusFlag string) error {
	return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
		var filter []jobs.Status
		if strings.TrimSpace(statusFlag) != "" {
			status, err := jobs.ParseStatus(statusFlag)
			if err != nil {
				return err
			}
			filter = append(filter, status)
		}

		list, err := store.List(cmd.Context(), filter...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No jobs found.")
			return nil
		}

		rows := make([][]string, 0, len(list))
		for _, job := range list {
			detail := job.Message
			if job.Status == jobs.StatusFailed {
				detail = job.ErrorMessage
			}
			rows = append(rows, []string{
				job.ID,
				string(job.Status),
				fmt.Sprintf("%d%%", job.Progress),
				formatAge(time.Since(job.CreatedAt)),
				truncate(detail, 48),
			})
		}
		renderTableTo(out,
			[]string{"Job", "Status", "Progress", "Age", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		)
		return nil
	})
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
