package main

import (
	"log/slog"

	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(config.AppConfig)
			if err != nil {
				return err
			}
			defer db.Close(conn)

			if err := db.Migrate(conn); err != nil {
				return err
			}
			slog.Info("schema up to date", "driver", config.AppConfig.DBDriver)
			return nil
		},
	}
}
