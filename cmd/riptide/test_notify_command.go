package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riptide/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
		},
	}
}

func newCleanTempCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clean-temp",
		Short: "Remove leftover partial downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CleanTemp(force)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case !resp.Configured:
					fmt.Fprintln(out, "No download root configured")
				case resp.Skipped:
					fmt.Fprintf(out, "Skipped: %s (use --force to clean anyway)\n", resp.Reason)
				default:
					fmt.Fprintf(out, "Removed %d temporary file(s)\n", resp.Removed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Clean even while downloads are running")
	return cmd
}
