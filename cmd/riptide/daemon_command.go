package main

import (
	"strings"

	"github.com/spf13/cobra"

	"riptide/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Daemon process management (internal)",
		Hidden: true,
	}

	var logLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the riptide daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := strings.TrimSpace(logLevel)
			if level == "" {
				level = cfg.Logging.Level
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    level,
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	runCmd.Flags().BoolVar(&development, "dev", false, "Use development logging (caller info, console output)")

	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}
