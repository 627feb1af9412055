// thinktank - resilient terminal client for the Think Tank chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/minerva-ai/thinktank-cli/internal/cli"
	"github.com/minerva-ai/thinktank-cli/internal/config"
)

// Version information (set at build time)
var (
	Version = "0.1.0"
)

func init() {
	cli.Version = Version
}

func main() {
	// Hot-reload the config while the REPL runs; best-effort.
	if watcher, err := config.Watch(nil); err == nil {
		defer watcher.Close()
	}

	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
