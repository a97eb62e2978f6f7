package dicom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SliceReader parses one file into slice metadata. The production reader
// uses the DICOM codec; tests inject fakes keyed by filename.
type SliceReader interface {
	ReadSlice(path string) (*Slice, error)
}

// FileReader reads slice metadata from DICOM files on disk, skipping pixel
// data so validation stays cheap even for large uploads.
type FileReader struct{}

// ReadSlice parses the file header and extracts the metadata the organizer
// needs. Files that do not parse as DICOM return an error.
func (FileReader) ReadSlice(path string) (*Slice, error) {
	dataset, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}

	slice := &Slice{Path: path}

	if uid, ok := stringValue(&dataset, tag.SeriesInstanceUID); ok {
		slice.SeriesUID = uid
	}
	if rows, ok := intValue(&dataset, tag.Rows); ok {
		slice.Rows = rows
	}
	if cols, ok := intValue(&dataset, tag.Columns); ok {
		slice.Columns = cols
	}
	if n, ok := intValue(&dataset, tag.InstanceNumber); ok {
		slice.InstanceNumber = &n
	}
	if loc, ok := floatValue(&dataset, tag.SliceLocation); ok {
		slice.SliceLocation = &loc
	}
	if pos, ok := floatSlice(&dataset, tag.ImagePositionPatient); ok && len(pos) >= 3 {
		z := pos[2]
		slice.PositionZ = &z
	}
	if spacing, ok := floatSlice(&dataset, tag.PixelSpacing); ok && len(spacing) >= 2 {
		slice.PixelSpacing = [2]float64{spacing[0], spacing[1]}
	}
	if thickness, ok := floatValue(&dataset, tag.SliceThickness); ok {
		slice.SliceThickness = thickness
	}
	if between, ok := floatValue(&dataset, tag.SpacingBetweenSlices); ok {
		slice.SpacingBetween = between
	}
	if modality, ok := stringValue(&dataset, tag.Modality); ok {
		slice.Modality = modality
	}
	if part, ok := stringValue(&dataset, tag.BodyPartExamined); ok {
		slice.BodyPart = part
	}

	return slice, nil
}

func stringValue(dataset *dicom.Dataset, t tag.Tag) (string, bool) {
	element, err := dataset.FindElementByTag(t)
	if err != nil || element == nil {
		return "", false
	}
	if values, ok := element.Value.GetValue().([]string); ok && len(values) > 0 {
		return strings.TrimSpace(values[0]), true
	}
	return "", false
}

func intValue(dataset *dicom.Dataset, t tag.Tag) (int, bool) {
	element, err := dataset.FindElementByTag(t)
	if err != nil || element == nil {
		return 0, false
	}
	switch values := element.Value.GetValue().(type) {
	case []int:
		if len(values) > 0 {
			return values[0], true
		}
	case []string:
		if len(values) > 0 {
			if parsed, err := strconv.Atoi(strings.TrimSpace(values[0])); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func floatValue(dataset *dicom.Dataset, t tag.Tag) (float64, bool) {
	values, ok := floatSlice(dataset, t)
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func floatSlice(dataset *dicom.Dataset, t tag.Tag) ([]float64, bool) {
	element, err := dataset.FindElementByTag(t)
	if err != nil || element == nil {
		return nil, false
	}
	switch values := element.Value.GetValue().(type) {
	case []float64:
		return values, len(values) > 0
	case []string:
		parsed := make([]float64, 0, len(values))
		for _, raw := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, false
			}
			parsed = append(parsed, f)
		}
		return parsed, len(parsed) > 0
	}
	return nil, false
}
