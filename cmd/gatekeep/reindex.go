// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/accessctl"
	"github.com/gatekeep/gatekeep/internal/accessctl/postgres"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/reindex"
	"github.com/gatekeep/gatekeep/internal/store"
)

// NewReindexCmd creates the reindex subcommand.
func NewReindexCmd() *cobra.Command {
	var (
		fillMissing bool
		fillLevel   string
		sync        string
		recursive   bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Run the bulk status maintenance job",
		Long: `Walk all resources and apply the selected maintenance steps: fill
missing status rows, sync the legacy reserved markers with leveled statuses,
and propagate container statuses to children.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
			}

			opts := reindex.Options{
				FillMissing: fillMissing,
				Recursive:   recursive,
				PageSize:    cfg.Reindex.PageSize,
			}
			if fillMissing {
				level, err := accessctl.ParseLevel(fillLevel)
				if err != nil {
					return err
				}
				opts.FillLevel = level
			}
			switch sync {
			case "none":
				opts.Sync = reindex.SyncNone
			case "legacy-to-leveled":
				opts.Sync = reindex.SyncLegacyToLeveled
			case "leveled-to-legacy":
				opts.Sync = reindex.SyncLeveledToLegacy
			default:
				return oops.Code("CONFIG_INVALID").
					With("sync", sync).
					Errorf("sync must be none, legacy-to-leveled, or leveled-to-legacy")
			}

			ctx := cmd.Context()
			pool, err := store.Connect(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if metricsAddr != "" {
				obs := observability.NewServer(metricsAddr, func() bool {
					return pool.Ping(ctx) == nil
				})
				if _, err := obs.Start(); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = obs.Stop(stopCtx)
				}()
			}

			job := reindex.NewJob(
				postgres.NewStatusRepository(pool),
				postgres.NewReservedRepository(pool),
				postgres.NewResourceDirectory(pool),
				slog.Default(),
			)
			result, err := job.Run(ctx, opts)
			if err != nil {
				return err
			}
			cmd.Printf("Reindex complete: %d processed, %d failed\n", result.Processed, result.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fillMissing, "fill-missing", false, "write a status row for resources missing one")
	cmd.Flags().StringVar(&fillLevel, "fill-level", "free", "level written by --fill-missing")
	cmd.Flags().StringVar(&sync, "sync", "none", "marker sync direction: none, legacy-to-leveled, leveled-to-legacy")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "propagate container statuses to children")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve metrics and health probes on this address for the duration of the run")

	return cmd
}
