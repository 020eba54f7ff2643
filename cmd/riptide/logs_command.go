package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"riptide/internal/ipc"
	"riptide/internal/logging"
	"riptide/internal/logs"
	"riptide/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var filters logstream.Filters

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			apiClient, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("log api client: %w", err)
			}

			var fallback logstream.TailClient
			if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
				defer client.Close()
				fallback = client
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), apiClient, fallback,
				logstream.Options{Lines: lines, Follow: follow, Filters: filters},
				func(evt logging.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			switch {
			case errors.Is(err, logstream.ErrFiltersRequireAPI):
				return err
			case errors.Is(err, logs.ErrAPIUnavailable) && fallback == nil:
				return wrapDialError(err, ctx.socketPath())
			case err != nil:
				return err
			}
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filters.Component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&filters.ItemID, "item", "", "Only show events for this queue item")
	cmd.Flags().StringVar(&filters.Service, "service", "", "Only show events for this service")
	cmd.Flags().StringVar(&filters.Level, "level", "", "Only show events at this level")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{evt.Timestamp.Local().Format("2006-01-02 15:04:05"), level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if subject := logSubject(evt); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if msg := strings.TrimSpace(evt.Message); msg != "" {
		line += " - " + msg
	}
	if len(evt.Fields) == 0 {
		return line
	}

	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(line)
	for _, key := range keys {
		value := strings.TrimSpace(evt.Fields[key])
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "\n    - %s: %s", key, value)
	}
	return b.String()
}

func logSubject(evt logging.LogEvent) string {
	item := strings.TrimSpace(evt.ItemID)
	stage := strings.TrimSpace(evt.Stage)
	switch {
	case item != "" && stage != "":
		return fmt.Sprintf("%s (%s)", item, stage)
	case item != "":
		return item
	case stage != "":
		return "(" + stage + ")"
	default:
		return ""
	}
}
