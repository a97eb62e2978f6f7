package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stlforge/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigPathCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set slicer.binary (or export SLICER_PATH) before converting.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# %s\n", resolvedPath)
			} else {
				fmt.Fprintln(out, "# built-in defaults (no configuration file found)")
			}
			fmt.Fprintf(out, "[paths]\nupload_dir = %q\noutput_dir = %q\nwork_dir = %q\nlog_dir = %q\n\n",
				cfg.Paths.UploadDir, cfg.Paths.OutputDir, cfg.Paths.WorkDir, cfg.Paths.LogDir)
			fmt.Fprintf(out, "[slicer]\nbinary = %q\ntimeout_seconds = %d\nvirtual_display = %q\n\n",
				cfg.Slicer.Binary, cfg.Slicer.TimeoutSeconds, cfg.Slicer.VirtualDisplay)
			fmt.Fprintf(out, "[conversion]\nthreshold_min = %d\nthreshold_max = %d\nthreshold_default = %d\nsmoothing_iterations = %d\ndecimation_default = %g\nmin_slices = %d\n\n",
				cfg.Conversion.ThresholdMin, cfg.Conversion.ThresholdMax, cfg.Conversion.ThresholdDefault,
				cfg.Conversion.SmoothingIterations, cfg.Conversion.DecimationDefault, cfg.Conversion.MinSlices)
			fmt.Fprintf(out, "[workflow]\njob_timeout_seconds = %d\nmax_concurrent_jobs = %d\n\n",
				cfg.Workflow.JobTimeoutSeconds, cfg.Workflow.MaxConcurrentJobs)
			fmt.Fprintf(out, "[retention]\nenabled = %v\nmax_age_hours = %d\nsweep_interval_minutes = %d\n",
				cfg.Retention.Enabled, cfg.Retention.MaxAgeHours, cfg.Retention.SweepIntervalMinutes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to show")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate a configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration at %s is valid.\n", resolvedPath)
			} else {
				fmt.Fprintln(out, "No configuration file found; built-in defaults are valid.")
			}
			fmt.Fprintf(out, "Slicer binary:  %s\n", cfg.Slicer.Binary)
			fmt.Fprintf(out, "Upload dir:     %s\n", cfg.Paths.UploadDir)
			fmt.Fprintf(out, "Output dir:     %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "Retention:      %s\n", yesNo(cfg.Retention.Enabled))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to validate")
	return cmd
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the default configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
