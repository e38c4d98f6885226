// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidshelf/vidshelf/internal/xdg"
)

// NewRootCmd creates the root command for the vidshelf CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vidshelf",
		Short: "vidshelf - video playlists with resume",
		Long: `vidshelf keeps a shared registry of video links, per-user playlists
and watch progress behind a JSON API.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML, default $XDG_CONFIG_HOME/vidshelf/config.yaml)")

	cmd.AddCommand(NewServeCmd(nil))
	cmd.AddCommand(NewMigrateCmd(nil))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("vidshelf %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	}
}

// configPath reads the persistent --config flag.
func configPath(cmd *cobra.Command) string {
	f := cmd.Flag("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// resolveConfigPath returns --config when set, otherwise the XDG config
// file if one exists.
func resolveConfigPath(cmd *cobra.Command, getenv func(string) string) string {
	if path := configPath(cmd); path != "" {
		return path
	}
	return xdg.FindConfigFile(getenv)
}
