package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the storage directories the pipeline reads and writes.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
}

// Slicer contains configuration for the external 3D Slicer invocation.
type Slicer struct {
	Binary             string `toml:"binary"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MarkerPollInterval int    `toml:"marker_poll_interval_ms"`
	MarkerMaxWait      int    `toml:"marker_max_wait_seconds"`
	VirtualDisplay     string `toml:"virtual_display"` // auto, always, never
}

// Conversion contains segmentation and meshing parameter bounds and defaults.
type Conversion struct {
	ThresholdMin        int     `toml:"threshold_min"`
	ThresholdMax        int     `toml:"threshold_max"`
	ThresholdDefault    int     `toml:"threshold_default"`
	SmoothingIterations int     `toml:"smoothing_iterations"`
	DecimationDefault   float64 `toml:"decimation_default"`
	MinSlices           int     `toml:"min_slices"`
}

// Workflow contains job orchestration timing and concurrency settings.
type Workflow struct {
	JobTimeoutSeconds  int `toml:"job_timeout_seconds"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	StatusPollInterval int `toml:"status_poll_interval_ms"`
}

// Retention contains the artifact cleanup schedule.
type Retention struct {
	Enabled              bool `toml:"enabled"`
	MaxAgeHours          int  `toml:"max_age_hours"`
	SweepIntervalMinutes int  `toml:"sweep_interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for stlforge.
//
// Configuration sections by subsystem:
//   - Paths: upload, output, work, and log directories
//   - Slicer: external reconstruction tool binary and supervision limits
//   - Conversion: threshold bounds, smoothing, decimation, series minimums
//   - Workflow: per-job timeout and concurrency cap
//   - Retention: artifact age limit and sweep cadence
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Slicer     Slicer     `toml:"slicer"`
	Conversion Conversion `toml:"conversion"`
	Workflow   Workflow   `toml:"workflow"`
	Retention  Retention  `toml:"retention"`
	Logging    Logging    `toml:"logging"`
}

// OutputExtension is the fixed extension of the produced mesh artifact.
const OutputExtension = ".stl"

// Virtual display modes for the slicer.virtual_display setting.
const (
	VirtualDisplayAuto   = "auto"
	VirtualDisplayAlways = "always"
	VirtualDisplayNever  = "never"
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stlforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stlforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage directories the pipeline needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobWorkDir returns the isolated working directory for one job.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, jobID)
}

// OutputPath returns the output artifact path for one job.
func (c *Config) OutputPath(jobID string) string {
	return filepath.Join(c.Paths.OutputDir, jobID+OutputExtension)
}

// UploadPath returns the upload directory for an upload identifier.
func (c *Config) UploadPath(uploadID string) string {
	return filepath.Join(c.Paths.UploadDir, uploadID)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
