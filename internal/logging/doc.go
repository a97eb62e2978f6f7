// Package logging builds the slog loggers used across stlforge.
//
// It offers console and JSON handlers selected by configuration, attribute
// helpers with standardized field names, and context-derived job/stage
// annotation so every pipeline log line carries its job identifier.
package logging
