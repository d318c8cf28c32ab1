package main

import (
	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/logging"
	"github.com/spf13/cobra"
)

var logLevel string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ptctl",
		Short:        "Maintenance commands for the paper tracker",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			level := config.AppConfig.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			logging.SetupWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(level))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newNormalizeCmd(), newFetchCmd(), newMigrateCmd())
	return root
}
