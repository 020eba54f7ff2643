package ipc

import "riptide/internal/api"

// QueueItem mirrors the HTTP API queue DTO for IPC callers.
type QueueItem = api.QueueItem

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse = api.DaemonStatus

// SubmitRequest hands URLs to the parsing worker.
type SubmitRequest struct {
	URLs []string `json:"urls"`
}

// SubmitResult reports one URL's submission outcome.
type SubmitResult struct {
	URL      string `json:"url"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// SubmitResponse lists per-URL outcomes.
type SubmitResponse struct {
	Results []SubmitResult `json:"results"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries in queue order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by local id.
type QueueDescribeRequest struct {
	ID string `json:"local_id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueIDsRequest targets specific queue items.
type QueueIDsRequest struct {
	IDs []string `json:"ids"`
}

// QueueCancelResponse reports per-item cancel outcomes.
type QueueCancelResponse = api.CancelItemsResult

// QueueRetryResponse reports per-item retry outcomes.
type QueueRetryResponse = api.RetryItemsResult

// QueueRemoveResponse reports per-item remove or delete outcomes.
type QueueRemoveResponse = api.RemoveItemsResult

// QueueBulkRequest carries no parameters for bulk controls.
type QueueBulkRequest struct{}

// QueueBulkResponse reports how many items a bulk control touched.
type QueueBulkResponse = api.ActionResult

// HistoryRequest filters archived downloads.
type HistoryRequest struct {
	Service string `json:"service"`
	Limit   int    `json:"limit"`
}

// HistoryResponse lists archived downloads, newest first.
type HistoryResponse = api.HistoryListResponse

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// CleanTempRequest removes leftover partial downloads.
type CleanTempRequest struct {
	Force bool `json:"force"`
}

// CleanTempResponse reports the cleanup outcome.
type CleanTempResponse = api.CleanTempResult

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
