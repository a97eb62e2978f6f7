// Package workflow orchestrates conversions end to end: synchronous upload
// validation, job creation, script generation, tool supervision, and
// terminal state recording, under a configurable concurrency cap and
// per-job timeout.
package workflow
