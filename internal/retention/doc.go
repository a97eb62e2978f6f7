// Package retention removes aged uploads, outputs, work directories, log
// files, and terminal job records on a fixed schedule. Removal is
// best-effort and age-based only.
package retention
