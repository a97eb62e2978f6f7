// Package jobs defines the conversion job model and its SQLite-backed
// store. Jobs move pending -> processing -> completed or failed; terminal
// states absorb all further mutation.
package jobs
