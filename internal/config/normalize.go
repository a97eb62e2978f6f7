package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSlicer()
	c.normalizeConversion()
	c.normalizeWorkflow()
	c.normalizeRetention()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSlicer() {
	if c.Slicer.Binary == "" {
		if value, ok := os.LookupEnv("SLICER_PATH"); ok {
			c.Slicer.Binary = value
		}
	}
	c.Slicer.Binary = strings.TrimSpace(c.Slicer.Binary)
	if c.Slicer.TimeoutSeconds <= 0 {
		c.Slicer.TimeoutSeconds = defaultSlicerTimeoutSeconds
	}
	if c.Slicer.MarkerPollInterval <= 0 {
		c.Slicer.MarkerPollInterval = defaultMarkerPollIntervalMs
	}
	if c.Slicer.MarkerMaxWait <= 0 {
		c.Slicer.MarkerMaxWait = defaultMarkerMaxWaitSeconds
	}
	c.Slicer.VirtualDisplay = strings.ToLower(strings.TrimSpace(c.Slicer.VirtualDisplay))
	if c.Slicer.VirtualDisplay == "" {
		c.Slicer.VirtualDisplay = defaultVirtualDisplay
	}
}

func (c *Config) normalizeConversion() {
	if c.Conversion.ThresholdMin == 0 && c.Conversion.ThresholdMax == 0 {
		c.Conversion.ThresholdMin = defaultThresholdMin
		c.Conversion.ThresholdMax = defaultThresholdMax
	}
	if c.Conversion.ThresholdDefault == 0 {
		c.Conversion.ThresholdDefault = (c.Conversion.ThresholdMin + c.Conversion.ThresholdMax) / 2
	}
	if c.Conversion.SmoothingIterations <= 0 {
		c.Conversion.SmoothingIterations = defaultSmoothingIterations
	}
	if c.Conversion.DecimationDefault == 0 {
		c.Conversion.DecimationDefault = defaultDecimation
	}
	if c.Conversion.MinSlices <= 0 {
		c.Conversion.MinSlices = defaultMinSlices
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.JobTimeoutSeconds <= 0 {
		c.Workflow.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		c.Workflow.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Workflow.StatusPollInterval <= 0 {
		c.Workflow.StatusPollInterval = defaultStatusPollIntervalMs
	}
}

func (c *Config) normalizeRetention() {
	if c.Retention.MaxAgeHours <= 0 {
		c.Retention.MaxAgeHours = defaultRetentionMaxAgeHours
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		c.Retention.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
