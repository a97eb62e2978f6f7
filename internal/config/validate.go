package config

import (
	"errors"
	"fmt"
	"os"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSlicer(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.WorkDir} {
		info, err := os.Stat(dir)
		if err != nil {
			// Missing directories are created later by EnsureDirectories.
			continue
		}
		if !info.IsDir() {
			return fmt.Errorf("path %q exists but is not a directory", dir)
		}
		if err := checkWritable(dir); err != nil {
			return fmt.Errorf("no write permission for %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) validateSlicer() error {
	if c.Slicer.Binary == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/stlforge/config.toml"
		}
		return fmt.Errorf("slicer.binary is required. Set SLICER_PATH env var or edit %s (create with 'stlforge config init')", defaultPath)
	}
	switch c.Slicer.VirtualDisplay {
	case VirtualDisplayAuto, VirtualDisplayAlways, VirtualDisplayNever:
	default:
		return fmt.Errorf("slicer.virtual_display must be auto, always, or never (got %q)", c.Slicer.VirtualDisplay)
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.ThresholdMin >= c.Conversion.ThresholdMax {
		return errors.New("conversion.threshold_min must be below conversion.threshold_max")
	}
	if c.Conversion.ThresholdDefault < c.Conversion.ThresholdMin || c.Conversion.ThresholdDefault > c.Conversion.ThresholdMax {
		return fmt.Errorf("conversion.threshold_default must lie in [%d, %d]", c.Conversion.ThresholdMin, c.Conversion.ThresholdMax)
	}
	if c.Conversion.DecimationDefault < 0 || c.Conversion.DecimationDefault >= 1 {
		return errors.New("conversion.decimation_default must be in [0, 1)")
	}
	if c.Conversion.MinSlices < 2 {
		return errors.New("conversion.min_slices must be at least 2")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}
