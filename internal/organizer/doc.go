// Package organizer decides where downloaded media lands on disk.
//
// It expands the configured path templates with sanitized metadata, truncates
// the result to the configured path length, detects files left by an earlier
// run, and appends finished playlist items to M3U files. Temp files share a
// fixed prefix so duplicate scans and cleanup can skip them.
package organizer
