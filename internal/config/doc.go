// Package config loads, normalizes, and validates stlforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLICER_PATH. The Config type centralizes every knob the pipeline and CLI
// need, so storage directories, Slicer supervision limits, and conversion
// parameter bounds are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
