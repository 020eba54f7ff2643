package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"riptide/internal/api"
	"riptide/internal/config"
	"riptide/internal/history"
	"riptide/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var service string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("download history is disabled (set history.enabled = true)")
			}
			req := ipc.HistoryRequest{Service: strings.TrimSpace(service), Limit: limit}
			entries, err := fetchHistory(cmd, ctx, cfg, req)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No downloads recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Completed", "Service", "Title", "Artist", "Status", "Size"},
				buildHistoryRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Only show downloads from this service")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// fetchHistory asks the daemon first and reads the archive directly when no
// daemon is reachable.
func fetchHistory(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, req ipc.HistoryRequest) ([]api.HistoryEntry, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		resp, err := client.History(req)
		if err != nil {
			return nil, err
		}
		return resp.Entries, nil
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open download history: %w", err)
	}
	defer store.Close()
	entries, err := store.List(cmd.Context(), history.ListOptions{Service: req.Service, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	return api.FromHistoryEntries(entries), nil
}

func buildHistoryRows(entries []api.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		completed := "-"
		if t := api.ParseTime(entry.CompletedAt); !t.IsZero() {
			completed = t.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			completed,
			entry.Service,
			truncate(fallback(entry.Name, entry.ItemID), titleWidth),
			truncate(fallback(entry.By, "-"), titleWidth/2),
			entry.Status,
			formatBytes(entry.SizeBytes),
		})
	}
	return rows
}
