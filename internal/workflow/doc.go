// Package workflow turns queued items into files on disk.
//
// The Manager owns four kinds of goroutines that share the queue stores:
// download workers claim Waiting items and run each through the download
// state machine (metadata, path, duplicate check, transfer, post-processing),
// a retry worker periodically flips Failed items back to Waiting, queue fill
// workers turn pending entries into Waiting items once their metadata is
// known, and a parsing worker expands submitted URLs through the registered
// resolvers.
//
// Item failures never stop a worker. Errors are classified through the
// services markers: unavailable media ends Unavailable, user cancellation
// ends Cancelled and everything else ends Failed for the retry sweep to pick
// up again. Progress is reported through a ProgressSink so front ends never
// reach into the core.
package workflow
