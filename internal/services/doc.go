// Package services defines shared utilities consumed by the download workers
// and the media collaborators they call.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, services, stages, worker
//     labels, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (failed vs unavailable vs cancelled).
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
