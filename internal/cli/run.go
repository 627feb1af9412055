// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/minerva-ai/thinktank-cli/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// =============================================================================
// COMMAND ROUTING
// =============================================================================

// Run dispatches the command line. args excludes the program name.
func Run(args []string) error {
	parsed := NewArgParser(args)

	if parsed.Subcommand() == "version" {
		fmt.Println("thinktank " + Version)
		return nil
	}
	if parsed.Subcommand() == "help" || parsed.BoolFlag("help") || parsed.BoolFlag("h") {
		printUsage()
		return nil
	}

	// serve-mock needs no app wiring (and no storage).
	if parsed.Subcommand() == "serve-mock" {
		return RunServeMock(parsed)
	}

	cfg := config.Global()
	app, err := NewApp(cfg, parsed)
	if err != nil {
		return err
	}
	defer app.Close()

	switch parsed.Subcommand() {
	case "", "chat":
		return RunChat(app, parsed)
	case "ask":
		return RunAsk(app, parsed)
	case "sessions":
		return RunSessions(app, parsed)
	default:
		// Bare words are treated as a one-shot question.
		return RunAsk(app, NewArgParser(append([]string{"ask"}, args...)))
	}
}

func printUsage() {
	fmt.Println(TitleStyle.Render("thinktank") + " - resilient Think Tank chat client")
	fmt.Println(`
Usage:
  thinktank [chat]                 interactive chat (default)
  thinktank ask <question>         one-shot question
  thinktank sessions [subcommand]  manage conversations
  thinktank serve-mock             run the mock backend standalone
  thinktank version                print version

Flags:
  --endpoint <url>   try this backend first
  --no-network       local-only: skip all backends, answer offline
  --plain            disable markdown rendering and color
  --data-dir <path>  storage directory (default ~/.thinktank)
  --timeout <secs>   per-endpoint attempt timeout`)
}
