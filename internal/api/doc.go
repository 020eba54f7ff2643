// Package api defines wire-format types and converters shared by the HTTP
// API, the IPC server and the CLI. It translates queue, workflow and history
// models into transport-friendly DTOs so consumers never depend on internal
// types.
//
// # Key Types
//
// QueueItem: transport representation of a queue entry with status, progress
// and the resolved file path.
//
// WorkflowStatus: worker counts, throughput counters, queue stats and the last
// processed item.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// HistoryEntry: one archived download from the optional history database.
//
// # Converters
//
// FromQueueItem, FromQueueItems and QueueMap convert queue.Item values.
// QueueMap produces the local_id keyed snapshot served by GET /items.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// # Design Notes
//
// DTOs use snake_case JSON tags matching the queue snapshot keys
// (item_status, item_name, file_path). Timestamps use RFC3339 with
// milliseconds in UTC.
package api
