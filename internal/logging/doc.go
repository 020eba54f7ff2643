// Package logging assembles structured slog loggers and formatting helpers used
// across riptide.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can automatically
// tag log lines with queue item IDs, services, stages, and correlation IDs. The
// StreamHub keeps a bounded buffer of recent events for the daemon's log API.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
