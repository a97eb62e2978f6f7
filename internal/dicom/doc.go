// Package dicom discovers slice files in an upload directory, groups them
// into series by Series Instance UID, orders slices by physical position,
// and validates that each series is geometrically consistent before it is
// handed to the conversion pipeline.
package dicom
