package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"riptide/internal/queue"
	"riptide/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "post-process", "convert", "ffmpeg exited", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"post-process", "convert", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want queue.Status
	}{
		{"nil", nil, queue.StatusFailed},
		{"transient", services.Wrap(services.ErrTransient, "fetch", "metadata", "429", nil), queue.StatusFailed},
		{"validation", services.Wrap(services.ErrValidation, "fetch", "metadata", "missing title", nil), queue.StatusFailed},
		{"unavailable", services.Wrap(services.ErrUnavailable, "fetch", "playable", "region locked", nil), queue.StatusUnavailable},
		{"cancelled", fmt.Errorf("transfer: %w", services.ErrCancelled), queue.StatusCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.FailureStatus(tc.err); got != tc.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestHasMarker(t *testing.T) {
	if services.HasMarker(errors.New("plain")) {
		t.Fatal("plain error should not carry a marker")
	}
	if !services.HasMarker(fmt.Errorf("wrapped: %w", services.ErrNotFound)) {
		t.Fatal("expected marker to be detected through wrapping")
	}
}
