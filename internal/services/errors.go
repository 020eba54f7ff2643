package services

import (
	"errors"
	"fmt"
	"strings"

	"riptide/internal/queue"
)

var (
	ErrTransient     = errors.New("transient failure")
	ErrUnavailable   = errors.New("media unavailable")
	ErrCancelled     = errors.New("cancelled")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrExternalTool  = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HasMarker reports whether err already carries one of the sentinel markers.
func HasMarker(err error) bool {
	for _, marker := range []error{
		ErrTransient, ErrUnavailable, ErrCancelled, ErrValidation,
		ErrConfiguration, ErrNotFound, ErrExternalTool, ErrTimeout,
	} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

// FailureStatus maps a download error to the status the worker should record.
func FailureStatus(err error) queue.Status {
	switch {
	case errors.Is(err, ErrCancelled):
		return queue.StatusCancelled
	case errors.Is(err, ErrUnavailable):
		return queue.StatusUnavailable
	default:
		return queue.StatusFailed
	}
}

// Hint returns a short operator-facing suggestion for the marker carried by err.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return "upstream may be rate limiting; the retry sweep will pick the item up again"
	case errors.Is(err, ErrUnavailable):
		return "item is not playable for the configured accounts"
	case errors.Is(err, ErrExternalTool):
		return "check that ffmpeg and yt-dlp are installed and on PATH"
	case errors.Is(err, ErrConfiguration):
		return "review the riptide config file"
	case errors.Is(err, ErrValidation):
		return "collaborator returned incomplete data; check logs for the item"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
