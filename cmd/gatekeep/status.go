// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/store"
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema migration status",
		Long:  `Show the current migration version and the pending migrations.`,
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

			version, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				cmd.Println("Schema version: none (no migrations applied)")
			} else {
				name, err := store.MigrationName(version)
				if err != nil {
					return err
				}
				cmd.Printf("Schema version: %d (%s)\n", version, name)
			}
			if dirty {
				cmd.Println("WARNING: schema is dirty; a migration failed partway through")
			}

			pending, err := migrator.PendingMigrations()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("Pending migrations: none")
				return nil
			}
			cmd.Println("Pending migrations:")
			for _, v := range pending {
				name, err := store.MigrationName(v)
				if err != nil {
					return err
				}
				cmd.Printf("  %d (%s)\n", v, name)
			}
			return nil
		},
	}
}
