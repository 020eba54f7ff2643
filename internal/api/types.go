package api

import "riptide/internal/logging"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	LocalID        string `json:"local_id"`
	Service        string `json:"item_service"`
	Type           string `json:"item_type"`
	ItemID         string `json:"item_id"`
	Status         string `json:"item_status"`
	Available      bool   `json:"available"`
	ParentCategory string `json:"parent_category"`
	PlaylistName   string `json:"playlist_name,omitempty"`
	PlaylistBy     string `json:"playlist_by,omitempty"`
	PlaylistNumber string `json:"playlist_number,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	Progress       int    `json:"progress"`
	Name           string `json:"item_name,omitempty"`
	By             string `json:"item_by,omitempty"`
	URL            string `json:"item_url,omitempty"`
	Thumbnail      string `json:"item_thumbnail,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Terminal       bool   `json:"terminal"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running         bool           `json:"running"`
	StartedAt       string         `json:"started_at,omitempty"`
	DownloadWorkers int            `json:"download_workers"`
	QueueWorkers    int            `json:"queue_workers"`
	Pending         int            `json:"pending"`
	Parsing         int            `json:"parsing"`
	DownloadedItems int64          `json:"downloaded_items"`
	DownloadedBytes int64          `json:"downloaded_bytes"`
	QueueStats      map[string]int `json:"queue_stats"`
	LastError       string         `json:"last_error,omitempty"`
	LastItem        *QueueItem     `json:"last_item,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lock_file"`
	SocketPath   string             `json:"socket_path"`
	APIBind      string             `json:"api_bind,omitempty"`
	HistoryPath  string             `json:"history_path,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HistoryEntry is one archived download.
type HistoryEntry struct {
	LocalID      string `json:"local_id"`
	Service      string `json:"item_service"`
	Type         string `json:"item_type"`
	ItemID       string `json:"item_id"`
	Name         string `json:"item_name"`
	By           string `json:"item_by"`
	URL          string `json:"item_url,omitempty"`
	PlaylistName string `json:"playlist_name,omitempty"`
	Status       string `json:"item_status"`
	FilePath     string `json:"file_path"`
	SizeBytes    int64  `json:"size_bytes"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// HistoryListResponse wraps archived downloads.
type HistoryListResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ActionResult reports the outcome of a bulk queue control.
type ActionResult struct {
	Action   string `json:"action"`
	Affected int    `json:"affected"`
	Message  string `json:"message,omitempty"`
}

// LogStreamResponse carries log events after a cursor.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// SubmitRequest asks the daemon to resolve and queue a URL.
type SubmitRequest struct {
	URL string `json:"url"`
}

// SuccessResponse mirrors the minimal acknowledgement returned by control routes.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
