package preflight

import (
	"context"

	"riptide/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download root", cfg.Paths.DownloadRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if results[0].Passed {
		results = append(results, CheckFreeSpace("Download root space", cfg.Paths.DownloadRoot, minFreeBytes))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	for _, dep := range CheckSystemDeps(cfg) {
		if dep.Available || !dep.Optional {
			results = append(results, Result{Name: dep.Name, Passed: dep.Available, Detail: depDetail(dep.Command, dep.Detail)})
		}
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func depDetail(command, detail string) string {
	if detail != "" {
		return detail
	}
	return command
}
