// Package daemon coordinates the long-running riptide process.
//
// It wires configuration, the in-memory queue, the workflow manager, the
// optional download history and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes queue
// controls (cancel, retry, clear, delete, restart), URL submission, dependency
// summaries and the websocket progress feed.
//
// Keep orchestration logic here: the download state machine lives in
// workflow and transport-neutral DTOs live in api.
package daemon
