package api

import (
	"context"
	"strings"

	"riptide/internal/organizer"
)

// ActiveDownloadProvider reports whether any item is mid-transfer.
type ActiveDownloadProvider interface {
	Idle() bool
}

type CleanTempRequest struct {
	DownloadRoot string
	Force        bool
	Activity     ActiveDownloadProvider
}

type CleanTempResult struct {
	Configured bool   `json:"configured"`
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
	Removed    int    `json:"removed"`
}

// CleanTempFiles removes leftover partial downloads under the download root.
// It refuses to run while downloads are in flight unless Force is set.
func CleanTempFiles(ctx context.Context, req CleanTempRequest) (CleanTempResult, error) {
	root := strings.TrimSpace(req.DownloadRoot)
	if root == "" {
		return CleanTempResult{Configured: false}, nil
	}
	if !req.Force && req.Activity != nil && !req.Activity.Idle() {
		return CleanTempResult{Configured: true, Skipped: true, Reason: "downloads in progress"}, nil
	}
	if err := ctx.Err(); err != nil {
		return CleanTempResult{}, err
	}
	removed, err := organizer.CleanupTemp(root)
	if err != nil {
		return CleanTempResult{Configured: true, Removed: removed}, err
	}
	return CleanTempResult{Configured: true, Removed: removed}, nil
}
