package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/migrations"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	var status, down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			if status {
				applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied  %s\n", m.Version)
				}
				for _, m := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending  %s\n", m.Version)
				}
				return nil
			}

			if down {
				if err := db.MigrateDown(ctx, migrations.FS); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				log.Info("rolled back latest migration", "path", db.Path())
				return nil
			}

			if err := db.Migrate(ctx, migrations.FS); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			log.Info("database migrations complete", "path", db.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations without applying")
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recently applied migration")
	cmd.MarkFlagsMutuallyExclusive("status", "down")
	return cmd
}
