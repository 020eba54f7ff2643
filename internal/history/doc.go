// Package history archives finished downloads in SQLite.
//
// The archive is independent of the in-memory queue: it is written when an
// item reaches Downloaded or Already Exists and read by the CLI and HTTP
// surfaces. Writes retry briefly on SQLITE_BUSY so concurrent workers can
// record at the same time.
package history
