package daemonctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riptide/internal/api"
	"riptide/internal/config"
	"riptide/internal/deps"
	"riptide/internal/history"
	"riptide/internal/ipc"
)

// StatusLine is one labelled row of `riptide status` output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// Snapshot combines live daemon status with offline checks.
type Snapshot struct {
	Status            api.DaemonStatus
	HistoryCount      int
	SystemChecks      []StatusLine
	DependencySummary DependencySummary
}

// BuildStatusSnapshot asks the daemon for its status and fills in what it can
// offline when the daemon is unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not available")
	}
	snapshot := &Snapshot{}

	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil {
			snapshot.Status = *resp
		}
		_ = client.Close()
	}
	if snapshot.Status.Workflow.QueueStats == nil {
		snapshot.Status.Workflow.QueueStats = api.MergeQueueStats(nil)
	}
	if len(snapshot.Status.Dependencies) == 0 {
		snapshot.Status.Dependencies = ResolveDependencies(cfg)
	}

	if cfg.History.Enabled {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := history.Open(cfg); err == nil {
			if count, countErr := store.Count(queryCtx); countErr == nil {
				snapshot.HistoryCount = count
			}
			_ = store.Close()
		}
	}

	snapshot.SystemChecks = BuildSystemChecks(cfg, snapshot.Status)
	snapshot.DependencySummary = BuildDependencySummary(snapshot.Status.Dependencies)
	return snapshot, nil
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(cfg *config.Config) []api.DependencyStatus {
	checks := deps.CheckBinaries(deps.Requirements(cfg))
	statuses := make([]api.DependencyStatus, 0, len(checks))
	for _, check := range checks {
		statuses = append(statuses, api.DependencyStatus{
			Name:        check.Name,
			Command:     check.Command,
			Description: check.Description,
			Optional:    check.Optional,
			Available:   check.Available,
			Detail:      check.Detail,
		})
	}
	return statuses
}

// DependencySeverity grades a single dependency.
func DependencySeverity(dep api.DependencyStatus) string {
	switch {
	case dep.Available:
		return "ok"
	case dep.Optional:
		return "warn"
	default:
		return "error"
	}
}

// BuildSystemChecks resolves status lines that combine runtime state and config.
func BuildSystemChecks(cfg *config.Config, status api.DaemonStatus) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if status.Running {
		lines = append(lines, StatusLine{Label: "Riptide", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	} else {
		lines = append(lines, StatusLine{Label: "Riptide", Severity: "warn", Detail: "Not running (run `riptide start`)"})
	}

	switch {
	case status.APIBind != "":
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "ok", Detail: status.APIBind})
	case strings.TrimSpace(cfg.Paths.APIBind) == "":
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "info", Detail: "Disabled"})
	default:
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "info", Detail: cfg.Paths.APIBind + " (inactive)"})
	}

	if cfg.History.Enabled {
		lines = append(lines, StatusLine{Label: "History", Severity: "ok", Detail: cfg.History.Path})
	} else {
		lines = append(lines, StatusLine{Label: "History", Severity: "info", Detail: "Disabled"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}

	if msg := strings.TrimSpace(status.Workflow.LastError); msg != "" {
		lines = append(lines, StatusLine{Label: "Last error", Severity: "warn", Detail: msg})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []api.DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks configured"}
	}

	summary := DependencySummary{Total: len(statuses)}
	for _, dep := range statuses {
		switch {
		case dep.Available:
			summary.Available++
		case dep.Optional:
			summary.MissingOptional++
		default:
			summary.MissingRequired++
		}
	}

	summary.Severity = "ok"
	summary.Detail = fmt.Sprintf("%d/%d available", summary.Available, summary.Total)
	if summary.MissingRequired > 0 {
		summary.Severity = "error"
	} else if summary.MissingOptional > 0 {
		summary.Severity = "warn"
	}
	if summary.Available < summary.Total {
		summary.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", summary.MissingRequired, summary.MissingOptional)
	}
	return summary
}
