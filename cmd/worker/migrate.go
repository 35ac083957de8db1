package main

import (
	"fmt"

	"github.com/phrazzld/goalforge/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := withSignals(cmd)
			defer stop()

			db, err := openDatabase(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			m, err := postgres.NewMigrator(db, logger)
			if err != nil {
				return err
			}

			switch args[0] {
			case "up":
				err = m.Up(ctx)
			case "down":
				err = m.Down(ctx)
			case "status":
				err = m.Status(ctx)
			}
			if err != nil {
				return err
			}

			version, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
