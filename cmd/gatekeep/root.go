// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatekeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeep",
		Short: "Gatekeep - access-control engine for digital collections",
		Long: `Gatekeep manages per-resource access levels, embargo windows, access
grants, and visitor access requests for a digital-collection platform.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewReindexCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// loadConfig reads the configuration named by --config and installs the
// default logger from its log section. Without --config, the XDG config
// file is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.SetDefault("gatekeep", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	return cfg, nil
}
