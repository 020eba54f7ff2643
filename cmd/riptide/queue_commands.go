package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"riptide/internal/api"
	"riptide/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the download queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueDeleteCommand(ctx))
	queueCmd.AddCommand(newQueueBulkCommand(ctx, "cancel-all", "Cancel every unfinished item", (*ipc.Client).QueueCancelAll))
	queueCmd.AddCommand(newQueueBulkCommand(ctx, "retry-all", "Retry every failed or cancelled item", (*ipc.Client).QueueRetryAll))
	queueCmd.AddCommand(newQueueBulkCommand(ctx, "clear", "Drop finished items from the queue", (*ipc.Client).QueueClearCompleted))
	queueCmd.AddCommand(newQueueBulkCommand(ctx, "restart", "Restart download workers and re-submit queued URLs", (*ipc.Client).RestartWorkers))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(status.Workflow.QueueStats)
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Items)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Artist", "Status", "Progress"},
					buildQueueListRows(resp.Items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Item)
				}
				writeQueueItemDetails(cmd.OutOrStdout(), resp.Item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueCancel(args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, item := range resp.Items {
					switch item.Outcome {
					case api.CancelItemUpdated:
						fmt.Fprintf(out, "Cancelled %s\n", item.ID)
					case api.CancelItemAlreadyFinished:
						fmt.Fprintf(out, "%s already finished (%s)\n", item.ID, item.PriorStatus)
					default:
						fmt.Fprintf(out, "%s not found\n", item.ID)
					}
				}
				fmt.Fprintf(out, "%d item(s) cancelled\n", resp.UpdatedCount)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Retry failed or cancelled queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, item := range resp.Items {
					switch item.Outcome {
					case api.RetryItemUpdated:
						fmt.Fprintf(out, "Retrying %s\n", item.ID)
					case api.RetryItemNotRetryable:
						fmt.Fprintf(out, "%s is %s and cannot be retried\n", item.ID, item.PriorStatus)
					default:
						fmt.Fprintf(out, "%s not found\n", item.ID)
					}
				}
				fmt.Fprintf(out, "%d item(s) queued for retry\n", resp.UpdatedCount)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove finished items from the queue, keeping their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRemove(args)
				if err != nil {
					return err
				}
				writeRemoveOutcomes(cmd.OutOrStdout(), resp, "removed")
				return nil
			})
		},
	}
}

func newQueueDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete downloaded files and mark the items deleted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDelete(args)
				if err != nil {
					return err
				}
				writeRemoveOutcomes(cmd.OutOrStdout(), resp, "deleted")
				return nil
			})
		},
	}
}

func newQueueBulkCommand(ctx *commandContext, use, short string, call func(*ipc.Client) (*ipc.QueueBulkResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if msg := strings.TrimSpace(resp.Message); msg != "" {
					fmt.Fprintln(out, msg)
					return nil
				}
				fmt.Fprintf(out, "%s: %d item(s) affected\n", resp.Action, resp.Affected)
				return nil
			})
		},
	}
}

func writeRemoveOutcomes(out io.Writer, resp *ipc.QueueRemoveResponse, verb string) {
	for _, item := range resp.Items {
		switch item.Outcome {
		case api.RemoveItemRemoved, api.RemoveItemDeleted:
			if item.FilePath != "" {
				fmt.Fprintf(out, "%s %s (%s)\n", capitalize(verb), item.ID, item.FilePath)
			} else {
				fmt.Fprintf(out, "%s %s\n", capitalize(verb), item.ID)
			}
		case api.RemoveItemNotFinished:
			fmt.Fprintf(out, "%s is still in progress\n", item.ID)
		default:
			fmt.Fprintf(out, "%s not found\n", item.ID)
		}
	}
	fmt.Fprintf(out, "%d item(s) %s\n", resp.RemovedCount, verb)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
