package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"stlforge/internal/config"
	"stlforge/internal/dicom"
	"stlforge/internal/jobs"
	"stlforge/internal/logging"
	"stlforge/internal/script"
	"stlforge/internal/services"
	"stlforge/internal/services/slicer"
)

// Progress checkpoints reported over a job's lifetime.
const (
	progressValidated = 10
	progressScripted  = 20
	progressLaunched  = 30
	progressFinished  = 90
)

// Option configures the manager.
type Option func(*Manager)

// WithRunner injects a custom reconstruction runner (primarily for tests).
func WithRunner(runner slicer.Runner) Option {
	return func(m *Manager) {
		if runner != nil {
			m.runner = runner
		}
	}
}

// WithOrganizer injects a custom series organizer.
func WithOrganizer(organizer *dicom.Organizer) Option {
	return func(m *Manager) {
		if organizer != nil {
			m.organizer = organizer
		}
	}
}

// WithLogger attaches a logger to the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "workflow")
		}
	}
}

// Manager orchestrates conversions: it validates the upload synchronously,
// creates the job record, and drives the asynchronous pipeline through the
// script generator and the tool supervisor.
type Manager struct {
	cfg       *config.Config
	store     *jobs.Store
	organizer *dicom.Organizer
	generator *script.Generator
	runner    slicer.Runner
	logger    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	inflight map[string]string // uploadID -> jobID

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewManager wires the conversion pipeline from configuration.
func NewManager(cfg *config.Config, store *jobs.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("job store required")
	}

	maxJobs := cfg.Workflow.MaxConcurrentJobs
	if maxJobs < 1 {
		maxJobs = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	manager := &Manager{
		cfg:       cfg,
		store:     store,
		organizer: dicom.NewOrganizer(cfg.Conversion.MinSlices),
		generator: script.NewGenerator(cfg),
		logger:    logging.NewNop(),
		baseCtx:   ctx,
		cancel:    cancel,
		inflight:  make(map[string]string),
		slots:     make(chan struct{}, maxJobs),
	}
	for _, opt := range opts {
		opt(manager)
	}
	if manager.runner == nil {
		client, err := slicer.New(cfg, slicer.WithLogger(manager.logger))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("construct slicer client: %w", err)
		}
		manager.runner = client
	}
	return manager, nil
}

// Store exposes the underlying job store.
func (m *Manager) Store() *jobs.Store {
	return m.store
}

// StartConversion validates the upload and launches the asynchronous
// pipeline. Uploads that fail validation are rejected here, before any job
// record exists. The returned job is a snapshot; poll Status for progress.
func (m *Manager) StartConversion(ctx context.Context, uploadID string, params script.Params) (*jobs.Job, error) {
	uploadDir := m.cfg.UploadPath(uploadID)
	if info, err := os.Stat(uploadDir); err != nil || !info.IsDir() {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "start",
			fmt.Sprintf("upload %s", uploadID), err)
	}

	params.Normalize(m.cfg)
	if err := params.Validate(m.cfg); err != nil {
		return nil, err
	}

	if err := m.reserveUpload(ctx, uploadID); err != nil {
		return nil, err
	}

	series, err := m.validateUpload(ctx, uploadID, uploadDir)
	if err != nil {
		m.releaseUpload(uploadID)
		return nil, err
	}

	job, err := m.createJob(ctx, uploadID, series, params)
	if err != nil {
		m.releaseUpload(uploadID)
		return nil, err
	}

	m.mu.Lock()
	m.inflight[uploadID] = job.ID
	m.mu.Unlock()

	// The job task keeps mutating its record; hand the caller a copy so
	// reads after return never race with checkpoint writes.
	snapshot := *job
	m.wg.Add(1)
	go m.runJob(job, series, params)

	m.logger.Info("conversion accepted",
		logging.String(logging.FieldJobID, snapshot.ID),
		logging.String(logging.FieldUploadID, uploadID),
		logging.Int("slices", len(series.Slices)),
	)
	return &snapshot, nil
}

// reserveUpload rejects a second conversion of an upload that is still in
// flight, checking both the in-process table and the store.
func (m *Manager) reserveUpload(ctx context.Context, uploadID string) error {
	m.mu.Lock()
	_, busy := m.inflight[uploadID]
	if !busy {
		m.inflight[uploadID] = "" // reserved until the job record exists
	}
	m.mu.Unlock()
	if busy {
		return services.Wrap(services.ErrConflict, "workflow", "start",
			fmt.Sprintf("upload %s already has an active conversion", uploadID), nil)
	}

	active, err := m.store.ActiveForUpload(ctx, uploadID)
	if err != nil {
		m.releaseUpload(uploadID)
		return fmt.Errorf("check active jobs: %w", err)
	}
	if active != nil {
		m.releaseUpload(uploadID)
		return services.Wrap(services.ErrConflict, "workflow", "start",
			fmt.Sprintf("upload %s already has an active conversion (job %s)", uploadID, active.ID), nil)
	}
	return nil
}

func (m *Manager) releaseUpload(uploadID string) {
	m.mu.Lock()
	delete(m.inflight, uploadID)
	m.mu.Unlock()
}

// validateUpload organizes the upload directory and selects the series to
// convert. When several valid series are present, the one with the most
// slices wins.
func (m *Manager) validateUpload(ctx context.Context, uploadID, uploadDir string) (*dicom.Series, error) {
	result, err := m.organizer.Scan(ctx, uploadDir)
	if err != nil {
		if errors.Is(err, dicom.ErrNoCandidates) || errors.Is(err, dicom.ErrNoValidSeries) {
			return nil, services.Wrap(services.ErrValidation, "workflow", "validate",
				validationDetail(err, result), err)
		}
		return nil, services.Wrap(services.ErrIO, "workflow", "validate", "scan upload", err)
	}

	selected := result.Series[0]
	for _, series := range result.Series[1:] {
		if len(series.Slices) > len(selected.Slices) {
			selected = series
		}
	}
	return selected, nil
}

func validationDetail(err error, result *dicom.ScanResult) string {
	if errors.Is(err, dicom.ErrNoCandidates) {
		return "no recognized image files in upload"
	}
	if result != nil && len(result.Rejections) > 0 {
		return fmt.Sprintf("no valid series: %s", result.Rejections[0].Reason)
	}
	return "no valid series in upload"
}

func (m *Manager) createJob(ctx context.Context, uploadID string, series *dicom.Series, params script.Params) (*jobs.Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	seriesJSON, err := json.Marshal(series.Summary())
	if err != nil {
		return nil, fmt.Errorf("marshal series summary: %w", err)
	}
	return m.store.NewJob(ctx, uploadID, string(paramsJSON), string(seriesJSON))
}

// runJob drives one conversion to a terminal state. It always records an
// outcome: panics aside, no job is left pending or processing forever.
func (m *Manager) runJob(job *jobs.Job, series *dicom.Series, params script.Params) {
	defer m.wg.Done()
	defer m.releaseUpload(job.UploadID)

	ctx := m.baseCtx
	if timeout := time.Duration(m.cfg.Workflow.JobTimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = services.WithJobID(services.WithUploadID(ctx, job.UploadID), job.ID)
	logger := logging.WithContext(ctx, m.logger)

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.failJob(job, services.Wrap(services.ErrTimeout, "workflow", "queue",
			"job timed out waiting for a worker slot", ctx.Err()))
		return
	}

	job.SetProcessing()
	job.SetProgress(progressValidated, "series validated")
	if err := m.store.Update(context.Background(), job); err != nil {
		logger.Error("persist job state", logging.Error(err))
	}

	scr, err := m.generator.Generate(m.cfg.JobWorkDir(job.ID), series, m.cfg.OutputPath(job.ID), params)
	if err != nil {
		m.failJob(job, err)
		return
	}
	m.checkpoint(ctx, job, progressScripted, "conversion script generated")

	m.checkpoint(ctx, job, progressLaunched, "reconstruction tool launched")
	result, err := m.runner.Run(ctx, scr)
	if err != nil {
		m.failJob(job, err)
		return
	}
	m.checkpoint(ctx, job, progressFinished, "reconstruction finished")

	job.SetCompleted(result.OutputPath)
	if err := m.store.Update(context.Background(), job); err != nil {
		logger.Error("persist completion", logging.Error(err))
	}
	logger.Info("conversion completed",
		logging.String("output", result.OutputPath),
		logging.Duration("duration", result.Duration),
	)
}

func (m *Manager) checkpoint(ctx context.Context, job *jobs.Job, percent int, message string) {
	job.SetProgress(percent, message)
	if err := m.store.Update(context.Background(), job); err != nil {
		logging.WithContext(ctx, m.logger).Error("persist progress", logging.Error(err))
	}
}

// failJob records a terminal failure. Progress stays at the failure point.
func (m *Manager) failJob(job *jobs.Job, err error) {
	job.SetFailed(services.Message(err))
	if updateErr := m.store.Update(context.Background(), job); updateErr != nil {
		m.logger.Error("persist failure", logging.Error(updateErr))
	}
	m.logger.Warn("conversion failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldUploadID, job.UploadID),
		logging.Int("progress", job.Progress),
		logging.Error(err),
	)
}

// Status returns the current snapshot of one job.
func (m *Manager) Status(ctx context.Context, jobID string) (*jobs.Job, error) {
	return m.store.GetByID(ctx, jobID)
}

// List returns job snapshots, optionally filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error) {
	return m.store.List(ctx, statuses...)
}

// Wait blocks until all in-flight jobs reach a terminal state.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels in-flight work and waits for jobs to record their outcome.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
