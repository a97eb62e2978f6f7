package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stlforge/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
upload_dir = "`+filepath.Join(base, "uploads")+`"
output_dir = "`+filepath.Join(base, "outputs")+`"
work_dir = "`+filepath.Join(base, "work")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[slicer]
binary = "/opt/slicer/Slicer"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be used, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Slicer.TimeoutSeconds != 600 {
		t.Fatalf("expected default slicer timeout 600, got %d", cfg.Slicer.TimeoutSeconds)
	}
	if cfg.Conversion.ThresholdDefault != 100 {
		t.Fatalf("expected default threshold 100, got %d", cfg.Conversion.ThresholdDefault)
	}
	if cfg.Conversion.MinSlices != 10 {
		t.Fatalf("expected default min slices 10, got %d", cfg.Conversion.MinSlices)
	}
	if cfg.Retention.MaxAgeHours != 24 {
		t.Fatalf("expected default retention age 24h, got %d", cfg.Retention.MaxAgeHours)
	}
}

func TestLoadRejectsInvalidThresholdRange(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
upload_dir = "`+filepath.Join(base, "uploads")+`"
output_dir = "`+filepath.Join(base, "outputs")+`"
work_dir = "`+filepath.Join(base, "work")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[slicer]
binary = "/opt/slicer/Slicer"

[conversion]
threshold_min = 500
threshold_max = 100
threshold_default = 300
`)

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected threshold range validation error")
	}
}

func TestLoadRejectsDecimationDefaultOfOne(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
upload_dir = "`+filepath.Join(base, "uploads")+`"
output_dir = "`+filepath.Join(base, "outputs")+`"
work_dir = "`+filepath.Join(base, "work")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[slicer]
binary = "/opt/slicer/Slicer"

[conversion]
decimation_default = 1.0
`)

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "decimation_default") {
		t.Fatalf("expected decimation_default validation error, got %v", err)
	}
}

func TestLoadRequiresSlicerBinary(t *testing.T) {
	t.Setenv("SLICER_PATH", "")
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
upload_dir = "`+filepath.Join(base, "uploads")+`"
output_dir = "`+filepath.Join(base, "outputs")+`"
work_dir = "`+filepath.Join(base, "work")+`"
log_dir = "`+filepath.Join(base, "logs")+`"
`)

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "slicer.binary") {
		t.Fatalf("expected slicer.binary error, got %v", err)
	}
}

func TestSlicerBinaryFromEnvironment(t *testing.T) {
	t.Setenv("SLICER_PATH", "/opt/env/Slicer")
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
upload_dir = "`+filepath.Join(base, "uploads")+`"
output_dir = "`+filepath.Join(base, "outputs")+`"
work_dir = "`+filepath.Join(base, "work")+`"
log_dir = "`+filepath.Join(base, "logs")+`"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Slicer.Binary != "/opt/env/Slicer" {
		t.Fatalf("expected binary from SLICER_PATH, got %q", cfg.Slicer.Binary)
	}
}

func TestJobPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = "/data/outputs"
	cfg.Paths.WorkDir = "/data/work"
	cfg.Paths.UploadDir = "/data/uploads"

	if got := cfg.OutputPath("job-1"); got != filepath.Join("/data/outputs", "job-1.stl") {
		t.Fatalf("unexpected output path: %s", got)
	}
	if got := cfg.JobWorkDir("job-1"); got != filepath.Join("/data/work", "job-1") {
		t.Fatalf("unexpected work dir: %s", got)
	}
	if got := cfg.UploadPath("up-1"); got != filepath.Join("/data/uploads", "up-1") {
		t.Fatalf("unexpected upload path: %s", got)
	}
}
