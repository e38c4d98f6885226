// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package xdg locates vidshelf files under the XDG Base Directory layout.
package xdg

import (
	"os"
	"path/filepath"
)

const (
	appName        = "vidshelf"
	configFileName = "config.yaml"
)

// ConfigDir returns $XDG_CONFIG_HOME/vidshelf, falling back to
// $HOME/.config/vidshelf.
func ConfigDir(getenv func(string) string) string {
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the conventional config file path.
func ConfigFile(getenv func(string) string) string {
	return filepath.Join(ConfigDir(getenv), configFileName)
}

// FindConfigFile returns ConfigFile when it names a regular file, or ""
// when there is nothing to load.
func FindConfigFile(getenv func(string) string) string {
	path := ConfigFile(getenv)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}
