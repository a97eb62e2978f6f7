package script

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stlforge/internal/config"
	"stlforge/internal/dicom"
	"stlforge/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfgVal := config.Default()
	cfg := &cfgVal
	base := t.TempDir()
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return cfg
}

func testSeries() *dicom.Series {
	return &dicom.Series{
		UID: "1.2.840.100",
		Slices: []*dicom.Slice{
			{Path: "/uploads/u1/img_00.dcm"},
			{Path: "/uploads/u1/img_01.dcm"},
			{Path: "/uploads/u1/img_02.dcm"},
		},
		Rows:    512,
		Columns: 512,
	}
}

func TestGenerateWritesScript(t *testing.T) {
	cfg := testConfig(t)
	workDir := filepath.Join(cfg.Paths.WorkDir, "job1")
	outputPath := cfg.OutputPath("job1")

	script, err := NewGenerator(cfg).Generate(workDir, testSeries(), outputPath, DefaultParams(cfg))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if script.Path != filepath.Join(workDir, "convert.py") {
		t.Errorf("unexpected script path %s", script.Path)
	}
	if script.SuccessMarker != filepath.Join(workDir, "convert.success") {
		t.Errorf("unexpected success marker %s", script.SuccessMarker)
	}
	if script.ErrorMarker != filepath.Join(workDir, "convert.error") {
		t.Errorf("unexpected error marker %s", script.ErrorMarker)
	}
	if script.OutputPath != outputPath {
		t.Errorf("unexpected output path %s", script.OutputPath)
	}

	content, err := os.ReadFile(script.Path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	text := string(content)
	for _, want := range []string{
		`"/uploads/u1/img_00.dcm"`,
		"THRESHOLD = 100",
		"SMOOTHING = True",
		"SMOOTHING_ITERATIONS = 15",
		"DECIMATION = 0.75",
		"vtkSTLWriter",
		`"status": "success"`,
		`"status": "error"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	series := testSeries()
	params := DefaultParams(cfg)

	first, err := NewGenerator(cfg).Generate(filepath.Join(cfg.Paths.WorkDir, "a"), series, cfg.OutputPath("a"), params)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := NewGenerator(cfg).Generate(filepath.Join(cfg.Paths.WorkDir, "a"), series, cfg.OutputPath("a"), params)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	a, _ := os.ReadFile(first.Path)
	b, _ := os.ReadFile(second.Path)
	if !bytes.Equal(a, b) {
		t.Error("repeated generation produced different script bytes")
	}
}

func TestGenerateSmoothingDisabled(t *testing.T) {
	cfg := testConfig(t)
	params := DefaultParams(cfg)
	params.Smoothing = false

	script, err := NewGenerator(cfg).Generate(filepath.Join(cfg.Paths.WorkDir, "b"), testSeries(), cfg.OutputPath("b"), params)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	content, _ := os.ReadFile(script.Path)
	if !strings.Contains(string(content), "SMOOTHING = False") {
		t.Error("expected smoothing disabled in script")
	}
}

func TestParamsValidate(t *testing.T) {
	cfg := testConfig(t)

	valid := DefaultParams(cfg)
	if err := valid.Validate(cfg); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"threshold below min", func(p *Params) { p.Threshold = cfg.Conversion.ThresholdMin - 1 }},
		{"threshold above max", func(p *Params) { p.Threshold = cfg.Conversion.ThresholdMax + 1 }},
		{"negative decimation", func(p *Params) { p.Decimation = -0.1 }},
		{"decimation at one", func(p *Params) { p.Decimation = 1.0 }},
		{"zero smoothing iterations", func(p *Params) { p.SmoothingIterations = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultParams(cfg)
			tc.mutate(&params)
			err := params.Validate(cfg)
			if !errors.Is(err, services.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParamsNormalize(t *testing.T) {
	cfg := testConfig(t)
	params := Params{Smoothing: true}
	params.Normalize(cfg)
	if params.Threshold != cfg.Conversion.ThresholdDefault {
		t.Errorf("threshold not defaulted: %d", params.Threshold)
	}
	if params.SmoothingIterations != cfg.Conversion.SmoothingIterations {
		t.Errorf("iterations not defaulted: %d", params.SmoothingIterations)
	}
}

func TestParamsNormalizePreservesZeroDecimation(t *testing.T) {
	cfg := testConfig(t)
	params := DefaultParams(cfg)
	params.Decimation = 0
	params.Normalize(cfg)
	if params.Decimation != 0 {
		t.Errorf("explicit zero decimation must survive normalization, got %g", params.Decimation)
	}
	if err := params.Validate(cfg); err != nil {
		t.Errorf("zero decimation should validate: %v", err)
	}
}
