package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stlforge/internal/config"
	"stlforge/internal/jobs"
	"stlforge/internal/logging"
)

// Result summarizes one sweep.
type Result struct {
	UploadsRemoved int
	OutputsRemoved int
	WorkRemoved    int
	LogsRemoved    int
	JobsDeleted    int64
	Failures       int
}

// Total returns the number of artifacts removed.
func (r Result) Total() int {
	return r.UploadsRemoved + r.OutputsRemoved + r.WorkRemoved + r.LogsRemoved
}

// Manager removes aged conversion artifacts on a schedule.
type Manager struct {
	cfg    *config.Config
	store  *jobs.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the manager.
type Option func(*Manager)

// WithLogger attaches a logger to the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "retention")
		}
	}
}

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a retention manager. The store may be nil, in which
// case only filesystem artifacts are swept.
func NewManager(cfg *config.Config, store *jobs.Store, opts ...Option) *Manager {
	manager := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager
}

// Sweep removes uploads, outputs, and work directories older than the
// configured age, plus aged log files and terminal job records. Each
// removal is independent: one failure never aborts the sweep.
func (m *Manager) Sweep(ctx context.Context) (Result, error) {
	var result Result
	cutoff := m.now().Add(-time.Duration(m.cfg.Retention.MaxAgeHours) * time.Hour)

	result.UploadsRemoved = m.removeAgedEntries(ctx, m.cfg.Paths.UploadDir, cutoff, &result)
	result.OutputsRemoved = m.removeAgedEntries(ctx, m.cfg.Paths.OutputDir, cutoff, &result)
	result.WorkRemoved = m.removeAgedEntries(ctx, m.cfg.Paths.WorkDir, cutoff, &result)
	result.LogsRemoved = m.removeAgedLogs(ctx, &result)

	if m.store != nil {
		deleted, err := m.store.DeleteTerminalBefore(ctx, cutoff)
		if err != nil {
			result.Failures++
			m.logger.Warn("prune job records", logging.Error(err))
		}
		result.JobsDeleted = deleted
	}

	if result.Total() > 0 || result.JobsDeleted > 0 {
		m.logger.Info("retention sweep finished",
			logging.Int("uploads", result.UploadsRemoved),
			logging.Int("outputs", result.OutputsRemoved),
			logging.Int("work_dirs", result.WorkRemoved),
			logging.Int("logs", result.LogsRemoved),
			logging.Int64("job_records", result.JobsDeleted),
			logging.Int("failures", result.Failures),
		)
	}
	return result, ctx.Err()
}

// removeAgedEntries deletes top-level entries of dir whose modification
// time predates the cutoff.
func (m *Manager) removeAgedEntries(ctx context.Context, dir string, cutoff time.Time, result *Result) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Failures++
			m.logger.Warn("read artifact directory", logging.String("dir", dir), logging.Error(err))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		target := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			result.Failures++
			m.logger.Warn("remove aged artifact", logging.String("path", target), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// removeAgedLogs deletes rotated log files older than the configured log
// retention. The job database shares the log directory and is never
// touched.
func (m *Manager) removeAgedLogs(ctx context.Context, result *Result) int {
	days := m.cfg.Logging.RetentionDays
	if days <= 0 {
		return 0
	}
	cutoff := m.now().Add(-time.Duration(days) * 24 * time.Hour)

	entries, err := os.ReadDir(m.cfg.Paths.LogDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		target := filepath.Join(m.cfg.Paths.LogDir, entry.Name())
		if err := os.Remove(target); err != nil {
			result.Failures++
			m.logger.Warn("remove aged log", logging.String("path", target), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// Run sweeps on the configured interval until the context is cancelled.
// One sweep runs immediately at startup.
func (m *Manager) Run(ctx context.Context) error {
	if !m.cfg.Retention.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := time.Duration(m.cfg.Retention.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	if _, err := m.Sweep(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
