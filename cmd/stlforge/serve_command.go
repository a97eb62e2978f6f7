package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"stlforge/internal/config"
	"stlforge/internal/jobs"
	"stlforge/internal/retention"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the retention sweeper until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				lock := flock.New(filepath.Join(cfg.Paths.LogDir, "stlforge.lock"))
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire instance lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another stlforge instance is already running (lock %s)", lock.Path())
				}
				defer lock.Unlock()

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				fmt.Fprintln(cmd.OutOrStdout(), "Retention sweeper running; press Ctrl-C to stop.")
				manager := retention.NewManager(cfg, store, retention.WithLogger(logger))
				err = manager.Run(runCtx)
				if runCtx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}
