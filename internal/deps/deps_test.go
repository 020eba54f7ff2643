package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"riptide/internal/config"
	"riptide/internal/deps"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[2].Detail)
	}

	missing := deps.MissingRequired(results)
	if len(missing) != 1 || missing[0] != "Missing" {
		t.Fatalf("unexpected missing list: %v", missing)
	}
}

func TestRequirementsFollowOutputSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Output.FFmpegPath = "/opt/ffmpeg"
	reqs := deps.Requirements(&cfg)
	if reqs[0].Command != "/opt/ffmpeg" || reqs[0].Optional {
		t.Fatalf("expected mandatory configured ffmpeg, got %#v", reqs[0])
	}

	cfg.Output.RawMediaDownload = true
	cfg.Output.EmbedMetadata = false
	cfg.Output.EmbedThumbnail = false
	if reqs := deps.Requirements(&cfg); !reqs[0].Optional {
		t.Fatal("expected ffmpeg optional for raw untagged downloads")
	}
}
