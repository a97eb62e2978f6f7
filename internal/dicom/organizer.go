package dicom

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"stlforge/internal/logging"
)

// RejectReasonUnrecognized is attached to files that fail header parsing.
const RejectReasonUnrecognized = "not a recognized format"

var (
	// ErrNoCandidates indicates the upload contained no parseable image files.
	ErrNoCandidates = errors.New("no recognized image files found")
	// ErrNoValidSeries indicates candidates were present but every series
	// failed validation.
	ErrNoValidSeries = errors.New("no valid series")
)

// ScanResult is the outcome of organizing an upload directory.
type ScanResult struct {
	Series     []*Series
	Rejections []Rejection
	Candidates int
}

// Option configures the organizer.
type Option func(*Organizer)

// WithReader injects a custom slice reader (primarily for tests).
func WithReader(reader SliceReader) Option {
	return func(o *Organizer) {
		if reader != nil {
			o.reader = reader
		}
	}
}

// WithLogger attaches a logger to the organizer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Organizer) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "organizer")
		}
	}
}

// Organizer discovers, groups, orders, and validates slice files.
type Organizer struct {
	reader    SliceReader
	minSlices int
	logger    *slog.Logger
}

// NewOrganizer constructs an organizer enforcing the given minimum slice
// count per series.
func NewOrganizer(minSlices int, opts ...Option) *Organizer {
	if minSlices < 2 {
		minSlices = 2
	}
	organizer := &Organizer{
		reader:    FileReader{},
		minSlices: minSlices,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(organizer)
	}
	return organizer
}

// Scan walks dir, groups parseable slices into series, and validates each
// series. Files that fail parsing are rejected individually and never abort
// the batch. The returned result always carries the rejection list; the
// error distinguishes "nothing parsed" from "everything parsed but invalid".
func (o *Organizer) Scan(ctx context.Context, dir string) (*ScanResult, error) {
	result := &ScanResult{}

	grouped := make(map[string][]*Slice)
	var order []string

	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}

		slice, readErr := o.reader.ReadSlice(path)
		if readErr != nil {
			result.Rejections = append(result.Rejections, Rejection{Path: path, Reason: RejectReasonUnrecognized})
			o.logger.Debug("skipping unrecognized file", logging.String("path", path), logging.Error(readErr))
			return nil
		}

		result.Candidates++
		uid := slice.SeriesUID
		if uid == "" {
			uid = "unknown"
		}
		if _, seen := grouped[uid]; !seen {
			order = append(order, uid)
		}
		grouped[uid] = append(grouped[uid], slice)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan upload directory: %w", walkErr)
	}

	if result.Candidates == 0 {
		return result, ErrNoCandidates
	}

	for _, uid := range order {
		slices := grouped[uid]
		series, rejection := o.buildSeries(uid, slices)
		if rejection != nil {
			result.Rejections = append(result.Rejections, *rejection)
			continue
		}
		result.Series = append(result.Series, series)
	}

	if len(result.Series) == 0 {
		return result, ErrNoValidSeries
	}

	o.logger.Info("upload organized",
		logging.Int("candidates", result.Candidates),
		logging.Int("valid_series", len(result.Series)),
		logging.Int("rejections", len(result.Rejections)),
	)
	return result, nil
}

// buildSeries orders and validates one candidate series. A validation
// failure rejects the whole series; no partial series is ever emitted.
func (o *Organizer) buildSeries(uid string, slices []*Slice) (*Series, *Rejection) {
	if len(slices) < o.minSlices {
		return nil, &Rejection{
			SeriesUID: uid,
			Reason:    fmt.Sprintf("insufficient slices: %d < %d", len(slices), o.minSlices),
		}
	}

	rows, cols := slices[0].Rows, slices[0].Columns
	for _, slice := range slices[1:] {
		if slice.Rows != rows || slice.Columns != cols {
			return nil, &Rejection{
				SeriesUID: uid,
				Reason:    fmt.Sprintf("inconsistent image dimensions: %dx%d vs %dx%d", rows, cols, slice.Rows, slice.Columns),
			}
		}
	}

	degraded := false
	for _, slice := range slices {
		if !slice.hasOrderingMetadata() {
			degraded = true
			break
		}
	}
	sortSlices(slices)

	series := &Series{
		UID:           uid,
		Slices:        slices,
		Rows:          rows,
		Columns:       cols,
		Modality:      slices[0].Modality,
		BodyPart:      slices[0].BodyPart,
		PixelSpacing:  slices[0].PixelSpacing,
		SliceSpacing:  sliceSpacing(slices[0]),
		OrderDegraded: degraded,
	}
	return series, nil
}

// sortSlices orders by physical position, then instance number, then
// filename. Filename order is the degraded-confidence fallback when both
// metadata keys are absent.
func sortSlices(slices []*Slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		a, b := slices[i], slices[j]
		posA, okA := a.positionKey()
		posB, okB := b.positionKey()
		if okA && okB && posA != posB {
			return posA < posB
		}
		if a.InstanceNumber != nil && b.InstanceNumber != nil && *a.InstanceNumber != *b.InstanceNumber {
			return *a.InstanceNumber < *b.InstanceNumber
		}
		return filepath.Base(a.Path) < filepath.Base(b.Path)
	})
}

func sliceSpacing(slice *Slice) float64 {
	if slice.SpacingBetween > 0 {
		return slice.SpacingBetween
	}
	return slice.SliceThickness
}
