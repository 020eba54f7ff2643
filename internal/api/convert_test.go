package api

import (
	"encoding/json"
	"testing"
	"time"

	"riptide/internal/queue"
	"riptide/internal/workflow"
)

func TestFromQueueItemUsesSnapshotKeys(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := queue.Item{
		LocalID:   "abc",
		Service:   "stub",
		Status:    queue.StatusDownloaded,
		Available: true,
		Progress:  100,
		Name:      "Song",
		By:        "Artist",
		FilePath:  "/music/Artist/Song.mp3",
		CreatedAt: created,
	}
	dto := FromQueueItem(item)
	if !dto.Terminal {
		t.Fatal("Downloaded item should be terminal")
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("CreatedAt = %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("UpdatedAt = %q, want empty", dto.UpdatedAt)
	}

	raw, err := json.Marshal(QueueMap([]queue.Item{item}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entry, ok := decoded["abc"]
	if !ok {
		t.Fatalf("snapshot missing local id: %s", raw)
	}
	for _, key := range []string{"item_status", "progress", "item_name", "item_by", "file_path"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("snapshot entry missing %q: %s", key, raw)
		}
	}
	if entry["item_status"] != "Downloaded" {
		t.Fatalf("item_status = %v", entry["item_status"])
	}
}

func TestFromStatusSummary(t *testing.T) {
	last := queue.Item{LocalID: "x", Status: queue.StatusFailed, ErrorMessage: "boom"}
	summary := workflow.StatusSummary{
		Running:         true,
		DownloadWorkers: 2,
		QueueWorkers:    1,
		DownloadedItems: 3,
		DownloadedBytes: 4096,
		LastError:       "boom",
		LastItem:        &last,
		QueueStats:      map[queue.Status]int{queue.StatusWaiting: 2},
	}
	wf := FromStatusSummary(summary)
	if !wf.Running || wf.DownloadWorkers != 2 || wf.DownloadedBytes != 4096 {
		t.Fatalf("unexpected workflow status %+v", wf)
	}
	if wf.QueueStats[string(queue.StatusWaiting)] != 2 {
		t.Fatalf("waiting = %d, want 2", wf.QueueStats[string(queue.StatusWaiting)])
	}
	if _, ok := wf.QueueStats[string(queue.StatusDownloaded)]; !ok {
		t.Fatal("stats should list every status")
	}
	if wf.LastItem == nil || wf.LastItem.ErrorMessage != "boom" {
		t.Fatalf("last item = %+v", wf.LastItem)
	}
	if wf.StartedAt != "" {
		t.Fatalf("StartedAt = %q, want empty for zero time", wf.StartedAt)
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	if got := ParseTime(FormatTime(at)); !got.Equal(at) {
		t.Fatalf("ParseTime = %v, want %v", got, at)
	}
	if !ParseTime("garbage").IsZero() {
		t.Fatal("invalid input should yield zero time")
	}
}
