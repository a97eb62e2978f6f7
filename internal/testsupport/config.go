package testsupport

import (
	"path/filepath"
	"testing"

	"stlforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfg := &cfgVal
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Slicer.Binary = "/opt/slicer/Slicer"
	cfg.Slicer.VirtualDisplay = config.VirtualDisplayNever
	cfg.Slicer.MarkerPollInterval = 20
	cfg.Slicer.MarkerMaxWait = 1

	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

// WithMaxConcurrentJobs overrides the workflow concurrency cap.
func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxConcurrentJobs = n
	}
}

// WithJobTimeout overrides the per-job timeout in seconds.
func WithJobTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.JobTimeoutSeconds = seconds
	}
}
