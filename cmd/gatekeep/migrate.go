// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var (
		down  bool
		steps int
		force int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply the engine's schema migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
			}

			migrator, err := store.NewMigrator(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // best-effort cleanup

			switch {
			case cmd.Flags().Changed("force"):
				if err := migrator.Force(force); err != nil {
					return err
				}
				cmd.Printf("Forced migration version to %d\n", force)
			case cmd.Flags().Changed("steps"):
				if err := migrator.Steps(steps); err != nil {
					return err
				}
				cmd.Printf("Applied %d migration step(s)\n", steps)
			case down:
				if err := migrator.Down(); err != nil {
					return err
				}
				cmd.Println("Rolled back all migrations")
			default:
				if err := migrator.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().IntVar(&steps, "steps", 0, "apply n migration steps (negative rolls back)")
	cmd.Flags().IntVar(&force, "force", 0, "force the migration version without running migrations")

	return cmd
}
