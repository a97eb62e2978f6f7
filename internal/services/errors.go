package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used to classify pipeline failures. Wrap tags errors with
// one of these markers; Classify recovers the category for status reporting.
var (
	ErrValidation = errors.New("validation error")
	ErrGeneration = errors.New("generation error")
	ErrExecution  = errors.New("execution error")
	ErrTimeout    = errors.New("timeout")
	ErrIO         = errors.New("io error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Kind names an error category for display and job records.
type Kind string

const (
	KindValidation Kind = "validation"
	KindGeneration Kind = "generation"
	KindExecution  Kind = "execution"
	KindTimeout    Kind = "timeout"
	KindIO         Kind = "io"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure category. Context deadline errors
// count as timeouts even when no marker was attached.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrExecution):
		return KindExecution
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Message strips the sentinel prefix from a wrapped error, returning the
// human-readable detail suitable for job records.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	for _, marker := range []error{ErrValidation, ErrGeneration, ErrExecution, ErrTimeout, ErrIO, ErrConflict, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
