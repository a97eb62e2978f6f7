// Package services defines the shared error taxonomy and context annotations
// used across the conversion pipeline.
//
// Stage code wraps failures with Wrap and one of the sentinel markers
// (ErrValidation, ErrGeneration, ErrExecution, ErrTimeout, ErrIO); the
// workflow manager calls Classify and Message when persisting a job's
// terminal state. Context helpers carry job, upload, and stage identifiers
// for structured logging.
package services
