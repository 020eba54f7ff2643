// Package logs reads the daemon log for the CLI.
//
// Tail reads a log file by byte offset with bounded memory. A negative offset
// returns the last N lines, and follow mode waits for new lines until the
// caller's context or wait budget ends. StreamClient reads structured events
// from the daemon's /api/logs endpoint instead of the file.
package logs
