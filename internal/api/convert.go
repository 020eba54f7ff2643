package api

import (
	"time"

	"riptide/internal/history"
	"riptide/internal/queue"
	"riptide/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item queue.Item) QueueItem {
	return QueueItem{
		LocalID:        item.LocalID,
		Service:        item.Service,
		Type:           item.Type,
		ItemID:         item.ItemID,
		Status:         string(item.Status),
		Available:      item.Available,
		ParentCategory: item.ParentCategory,
		PlaylistName:   item.PlaylistName,
		PlaylistBy:     item.PlaylistBy,
		PlaylistNumber: item.PlaylistNumber,
		FilePath:       item.FilePath,
		Progress:       item.Progress,
		Name:           item.Name,
		By:             item.By,
		URL:            item.URL,
		Thumbnail:      item.Thumbnail,
		ErrorMessage:   item.ErrorMessage,
		Terminal:       item.Status.IsTerminal(),
		CreatedAt:      FormatTime(item.CreatedAt),
		UpdatedAt:      FormatTime(item.UpdatedAt),
	}
}

// FromQueueItems converts queue records into API DTOs, preserving order.
func FromQueueItems(items []queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// QueueMap keys converted items by local id.
func QueueMap(items []queue.Item) map[string]QueueItem {
	out := make(map[string]QueueItem, len(items))
	for _, item := range items {
		out[item.LocalID] = FromQueueItem(item)
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:         summary.Running,
		StartedAt:       FormatTime(summary.StartedAt),
		DownloadWorkers: summary.DownloadWorkers,
		QueueWorkers:    summary.QueueWorkers,
		Pending:         summary.Pending,
		Parsing:         summary.Parsing,
		DownloadedItems: summary.DownloadedItems,
		DownloadedBytes: summary.DownloadedBytes,
		QueueStats:      MergeQueueStats(summary.QueueStats),
		LastError:       summary.LastError,
	}
	if summary.LastItem != nil {
		last := FromQueueItem(*summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// FromHistoryEntries converts archived downloads.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			LocalID:      e.LocalID,
			Service:      e.Service,
			Type:         e.Type,
			ItemID:       e.ItemID,
			Name:         e.Name,
			By:           e.By,
			URL:          e.URL,
			PlaylistName: e.PlaylistName,
			Status:       string(e.Status),
			FilePath:     e.FilePath,
			SizeBytes:    e.SizeBytes,
			CompletedAt:  FormatTime(e.CompletedAt),
		})
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats.
// Every known status is present so consumers can render a stable table.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a timestamp produced by FormatTime.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
