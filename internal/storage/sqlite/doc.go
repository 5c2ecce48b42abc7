// Package sqlite persists estimator runs and their per-step estimates.
//
// Schema changes are embedded golang-migrate migrations applied by Open.
// Writes retry on SQLITE_BUSY so a report reader can share the file with
// a running replay.
package sqlite
