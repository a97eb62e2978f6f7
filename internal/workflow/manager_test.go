package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stlforge/internal/config"
	"stlforge/internal/dicom"
	"stlforge/internal/jobs"
	"stlforge/internal/script"
	"stlforge/internal/services"
	"stlforge/internal/services/slicer"
	"stlforge/internal/testsupport"
	"stlforge/internal/workflow"
)

type fakeReader struct {
	slices map[string]*dicom.Slice
}

func (r fakeReader) ReadSlice(path string) (*dicom.Slice, error) {
	slice, ok := r.slices[filepath.Base(path)]
	if !ok {
		return nil, errors.New("unreadable header")
	}
	copied := *slice
	copied.Path = path
	return &copied, nil
}

type fakeRunner struct {
	fail      error
	block     chan struct{}
	started   chan struct{}
	startOnce sync.Once
	scripts   []*script.Script
}

func (f *fakeRunner) Run(ctx context.Context, scr *script.Script) (*slicer.Result, error) {
	f.scripts = append(f.scripts, scr)
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrTimeout, "slicer", "run", "reconstruction timed out", ctx.Err())
		}
	}
	if f.fail != nil {
		return nil, f.fail
	}
	if err := os.WriteFile(scr.OutputPath, []byte("solid mesh"), 0o644); err != nil {
		return nil, err
	}
	return &slicer.Result{OutputPath: scr.OutputPath}, nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// seedUpload writes count slice files under the upload directory and
// registers matching metadata with the fake reader.
func seedUpload(t *testing.T, cfg *config.Config, reader fakeReader, uploadID string, count int) {
	t.Helper()
	dir := cfg.UploadPath(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir upload: %v", err)
	}
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("img_%02d.dcm", i)
		testsupport.WriteFile(t, filepath.Join(dir, name), 64)
		reader.slices[name] = &dicom.Slice{
			SeriesUID:      "1.2.840.500",
			SliceLocation:  floatPtr(float64(i) * 1.25),
			InstanceNumber: intPtr(i + 1),
			Rows:           512,
			Columns:        512,
			Modality:       "CT",
		}
	}
}

func newManager(t *testing.T, cfg *config.Config, runner slicer.Runner, reader fakeReader) (*workflow.Manager, *jobs.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	organizer := dicom.NewOrganizer(cfg.Conversion.MinSlices, dicom.WithReader(reader))
	manager, err := workflow.NewManager(cfg, store,
		workflow.WithRunner(runner),
		workflow.WithOrganizer(organizer),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(manager.Close)
	return manager, store
}

func TestConversionSucceedsEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-ok", 12)
	runner := &fakeRunner{}
	manager, store := newManager(t, cfg, runner, reader)

	job, err := manager.StartConversion(context.Background(), "upload-ok", script.DefaultParams(cfg))
	if err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	if job.Status != jobs.StatusPending {
		t.Errorf("accepted job should start pending, got %s", job.Status)
	}
	manager.Wait()

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Errorf("completed job should report 100, got %d", final.Progress)
	}
	if final.OutputFile != cfg.OutputPath(job.ID) {
		t.Errorf("unexpected output file %s", final.OutputFile)
	}
	if data, err := os.ReadFile(final.OutputFile); err != nil || len(data) == 0 {
		t.Errorf("output artifact missing: %v", err)
	}

	if len(runner.scripts) != 1 {
		t.Fatalf("expected one tool run, got %d", len(runner.scripts))
	}
	content, err := os.ReadFile(runner.scripts[0].Path)
	if err != nil {
		t.Fatalf("read generated script: %v", err)
	}
	for _, want := range []string{"THRESHOLD = 100", "SMOOTHING_ITERATIONS = 15", "DECIMATION = 0.75"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("script missing default %q", want)
		}
	}
}

func TestStartConversionReturnsDetachedSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-snap", 12)
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	manager, store := newManager(t, cfg, runner, reader)

	job, err := manager.StartConversion(context.Background(), "upload-snap", script.Params{})
	if err != nil {
		t.Fatalf("StartConversion: %v", err)
	}

	// The job task is past the launch checkpoint here; the record handed
	// back at acceptance must not have moved with it.
	<-runner.started
	if job.Status != jobs.StatusPending || job.Progress != 0 {
		t.Errorf("returned record should be the accepted snapshot, got %s at %d%%", job.Status, job.Progress)
	}

	close(runner.block)
	manager.Wait()

	if job.Status != jobs.StatusPending || job.Progress != 0 {
		t.Errorf("returned record mutated after completion: %s at %d%%", job.Status, job.Progress)
	}
	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.ErrorMessage)
	}
}

func TestExplicitZeroDecimationReachesScript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-nodecim", 12)
	runner := &fakeRunner{}
	manager, _ := newManager(t, cfg, runner, reader)

	params := script.DefaultParams(cfg)
	params.Decimation = 0
	if _, err := manager.StartConversion(context.Background(), "upload-nodecim", params); err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	manager.Wait()

	if len(runner.scripts) != 1 {
		t.Fatalf("expected one tool run, got %d", len(runner.scripts))
	}
	content, err := os.ReadFile(runner.scripts[0].Path)
	if err != nil {
		t.Fatalf("read generated script: %v", err)
	}
	if !strings.Contains(string(content), "DECIMATION = 0\n") {
		t.Error("zero decimation should not be replaced by the configured default")
	}
}

func TestShortUploadRejectedBeforeJobCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-short", 5)
	manager, store := newManager(t, cfg, &fakeRunner{}, reader)

	_, err := manager.StartConversion(context.Background(), "upload-short", script.Params{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient slices: 5 < 10") {
		t.Errorf("rejection should name the slice count: %v", err)
	}

	all, listErr := store.List(context.Background())
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(all) != 0 {
		t.Fatalf("rejected upload must not create a job, found %d", len(all))
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-params", 12)
	manager, store := newManager(t, cfg, &fakeRunner{}, reader)

	_, err := manager.StartConversion(context.Background(), "upload-params",
		script.Params{Threshold: cfg.Conversion.ThresholdMax + 1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if all, _ := store.List(context.Background()); len(all) != 0 {
		t.Fatalf("invalid params must not create a job, found %d", len(all))
	}
}

func TestMissingUploadRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newManager(t, cfg, &fakeRunner{}, fakeReader{slices: map[string]*dicom.Slice{}})

	_, err := manager.StartConversion(context.Background(), "no-such-upload", script.Params{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestConcurrentConversionOfSameUploadRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-busy", 12)
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	manager, _ := newManager(t, cfg, runner, reader)

	first, err := manager.StartConversion(context.Background(), "upload-busy", script.Params{})
	if err != nil {
		t.Fatalf("first StartConversion: %v", err)
	}
	<-runner.started

	_, err = manager.StartConversion(context.Background(), "upload-busy", script.Params{})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	close(runner.block)
	manager.Wait()

	// Once the first job is terminal the upload may be converted again.
	if _, err := manager.Status(context.Background(), first.ID); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := manager.StartConversion(context.Background(), "upload-busy", script.Params{}); err != nil {
		t.Fatalf("conversion after completion should be accepted: %v", err)
	}
	manager.Wait()
}

func TestToolFailureFreezesProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-fail", 12)
	runner := &fakeRunner{
		fail: services.Wrap(services.ErrExecution, "slicer", "run", "segmentation produced an empty mesh", nil),
	}
	manager, store := newManager(t, cfg, runner, reader)

	job, err := manager.StartConversion(context.Background(), "upload-fail", script.Params{})
	if err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	manager.Wait()

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Progress != 30 {
		t.Errorf("progress should freeze at launch checkpoint, got %d", final.Progress)
	}
	if !strings.Contains(final.ErrorMessage, "empty mesh") {
		t.Errorf("tool message not recorded: %q", final.ErrorMessage)
	}
}

func TestJobTimeoutFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJobTimeout(1))
	reader := fakeReader{slices: map[string]*dicom.Slice{}}
	seedUpload(t, cfg, reader, "upload-slow", 12)
	runner := &fakeRunner{block: make(chan struct{})}
	manager, store := newManager(t, cfg, runner, reader)

	job, err := manager.StartConversion(context.Background(), "upload-slow", script.Params{})
	if err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	manager.Wait()
	close(runner.block)

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed after timeout, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "timed out") {
		t.Errorf("timeout not recorded: %q", final.ErrorMessage)
	}
}
