package dicom

// Slice describes one 2D image plane read from an upload. Metadata is
// captured once during validation; the pixel data itself stays on disk and
// is only ever read by the external reconstruction tool.
type Slice struct {
	Path      string
	SeriesUID string

	// Ordering keys. Nil means the tag was absent from the file.
	SliceLocation  *float64
	PositionZ      *float64
	InstanceNumber *int

	Rows    int
	Columns int

	PixelSpacing   [2]float64 // row, column (mm)
	SliceThickness float64
	SpacingBetween float64

	Modality string
	BodyPart string
}

// positionKey returns the primary ordering key for the slice. Slice location
// is preferred; the Z component of the image position is the stand-in when
// the location tag is absent.
func (s *Slice) positionKey() (float64, bool) {
	if s.SliceLocation != nil {
		return *s.SliceLocation, true
	}
	if s.PositionZ != nil {
		return *s.PositionZ, true
	}
	return 0, false
}

// hasOrderingMetadata reports whether the slice carries any ordering key at
// all. Slices without one force the series into filename ordering.
func (s *Slice) hasOrderingMetadata() bool {
	if _, ok := s.positionKey(); ok {
		return true
	}
	return s.InstanceNumber != nil
}

// Series is an ordered set of slices sharing one series identifier.
type Series struct {
	UID    string
	Slices []*Slice

	Rows    int
	Columns int

	Modality string
	BodyPart string

	PixelSpacing [2]float64
	SliceSpacing float64

	// OrderDegraded is set when at least one slice lacked both position and
	// instance-number metadata, so ordering fell back to filenames.
	OrderDegraded bool
}

// Summary is the read-only aggregate exposed for caller display.
type Summary struct {
	SeriesUID     string
	Modality      string
	BodyPart      string
	SliceCount    int
	Rows          int
	Columns       int
	PixelSpacing  [2]float64
	SliceSpacing  float64
	OrderDegraded bool
}

// Summary returns aggregated display metadata for the series.
func (s *Series) Summary() Summary {
	return Summary{
		SeriesUID:     s.UID,
		Modality:      s.Modality,
		BodyPart:      s.BodyPart,
		SliceCount:    len(s.Slices),
		Rows:          s.Rows,
		Columns:       s.Columns,
		PixelSpacing:  s.PixelSpacing,
		SliceSpacing:  s.SliceSpacing,
		OrderDegraded: s.OrderDegraded,
	}
}

// SlicePaths returns the ordered file locations of the series' slices.
func (s *Series) SlicePaths() []string {
	paths := make([]string, len(s.Slices))
	for i, slice := range s.Slices {
		paths[i] = slice.Path
	}
	return paths
}

// Rejection records why a file or a whole series was excluded from conversion.
type Rejection struct {
	Path      string // set for per-file rejections
	SeriesUID string // set for whole-series rejections
	Reason    string
}
