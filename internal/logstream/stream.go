// Package logstream drives `riptide logs`: it prefers structured events from
// the HTTP API and falls back to tailing the log file over IPC.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"riptide/internal/ipc"
	"riptide/internal/logging"
	"riptide/internal/logs"
)

// ErrFiltersRequireAPI reports that filters were requested but only the
// unstructured file tail is reachable.
var ErrFiltersRequireAPI = errors.New("log filters require API access")

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Filters contains optional predicates supported by API log streaming.
type Filters struct {
	Component string
	ItemID    string
	Service   string
	Level     string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.ItemID) == "" &&
		strings.TrimSpace(f.Service) == "" &&
		strings.TrimSpace(f.Level) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

const pageSize = 200

// Stream emits log events from the API when available, falling back to IPC
// tailing. It reports whether anything was emitted.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	fallback TailClient,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil || printed || !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if fallback == nil {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, fallback, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		ItemID:    opts.Filters.ItemID,
		Service:   opts.Filters.Service,
		Level:     opts.Filters.Level,
	}
	if query.Limit <= 0 {
		query.Limit = pageSize
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			if printed && ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		if resp.Next > query.Since {
			query.Since = resp.Next
		}
		query.Limit = pageSize
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	limit := max(opts.Lines, 0)
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow || ctx.Err() != nil {
			return printed, nil
		}
	}
}
