// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package main is the entry point for the vidshelf server.
package main

import (
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
