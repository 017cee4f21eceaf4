// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/mdip/authd/internal/config"
)

// NewRootCmd creates the root command for the authd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authd",
		Short: "authd - credential, lockout and session service",
		Long: `authd registers users, verifies passwords, locks accounts after
repeated failures and issues session tokens. It serves these operations over
gRPC and offers local admin commands against the same storage.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: $XDG_CONFIG_HOME/authd/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig resolves configuration for cmd from its --config file, the
// environment and any changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err //nolint:wrapcheck // flag is registered on the root command
	}
	return config.Load(path, cmd.Flags())
}
