package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"proposal-review/internal/config"
	"proposal-review/internal/database"
	"proposal-review/migrations"
)

func migrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	executor := func(db *database.Database) *database.MigrationExecutor {
		return database.NewMigrationExecutor(db.DB.DB, migrations.Files)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cfg, func(db *database.Database) error {
					applied, err := executor(db).RunMigrations()
					if err != nil {
						return err
					}
					slog.Info("Database migrations completed", "applied", applied)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cfg, func(db *database.Database) error {
					version, err := executor(db).RollbackLast()
					if err != nil {
						return err
					}
					if version == "" {
						slog.Info("No migrations to roll back")
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cfg, func(db *database.Database) error {
					statuses, err := executor(db).Status()
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, s := range statuses {
						state := "pending"
						if s.Applied {
							state = "applied"
						}
						fmt.Fprintf(out, "%s  %-8s %s\n", s.Version, state, s.Title)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
