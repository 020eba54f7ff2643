package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"riptide/internal/ipc"
)

const titleWidth = 40

// buildQueueStatusRows lists non-zero counts sorted by status name.
func buildQueueStatusRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

// buildQueueListRows keeps the daemon's queue order.
func buildQueueListRows(items []ipc.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.LocalID,
			truncate(itemTitle(item), titleWidth),
			truncate(fallback(item.By, "-"), titleWidth/2),
			item.Status,
			formatProgress(item),
		})
	}
	return rows
}

func writeQueueItemDetails(out io.Writer, item ipc.QueueItem) {
	fmt.Fprintf(out, "ID:         %s\n", item.LocalID)
	fmt.Fprintf(out, "Service:    %s\n", item.Service)
	fmt.Fprintf(out, "Type:       %s\n", item.Type)
	fmt.Fprintf(out, "Title:      %s\n", itemTitle(item))
	fmt.Fprintf(out, "Artist:     %s\n", fallback(item.By, "-"))
	if item.PlaylistName != "" {
		fmt.Fprintf(out, "Playlist:   %s (%s)\n", item.PlaylistName, fallback(item.PlaylistBy, "unknown"))
	}
	fmt.Fprintf(out, "Status:     %s\n", item.Status)
	fmt.Fprintf(out, "Progress:   %s\n", formatProgress(item))
	fmt.Fprintf(out, "Available:  %s\n", yesNo(item.Available))
	if item.URL != "" {
		fmt.Fprintf(out, "URL:        %s\n", item.URL)
	}
	if item.FilePath != "" {
		fmt.Fprintf(out, "File:       %s\n", item.FilePath)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", item.ErrorMessage)
	}
	if created := formatDisplayTime(item.CreatedAt); created != "" {
		fmt.Fprintf(out, "Created:    %s\n", created)
	}
	if updated := formatDisplayTime(item.UpdatedAt); updated != "" {
		fmt.Fprintf(out, "Updated:    %s\n", updated)
	}
}

func itemTitle(item ipc.QueueItem) string {
	if title := strings.TrimSpace(item.Name); title != "" {
		return title
	}
	return item.ItemID
}

func formatProgress(item ipc.QueueItem) string {
	if item.Terminal {
		return "-"
	}
	return fmt.Sprintf("%d%%", item.Progress)
}

// formatDisplayTime renders an RFC3339 timestamp with a relative suffix.
func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(t))
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 1 || len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
