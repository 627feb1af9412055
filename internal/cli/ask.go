// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// RunAsk sends a one-shot question and prints the answer to stdout.
// The question comes from the arguments, or stdin when piped:
//
//	thinktank ask "what is a bloom filter"
//	echo "summarize this" | thinktank ask
//
// The exchange lands in the active conversation like any chat turn.
func RunAsk(app *App, args *ArgParser) error {
	question := strings.Join(args.PositionalFrom(1), " ")
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		question = string(data)
	}
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("nothing to ask: pass a question or pipe one on stdin")
	}

	res, err := app.Dispatcher.Send(context.Background(), "", question)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("nothing to ask: input was empty")
	}

	fmt.Println(app.Renderer.Render(res.Reply.Content))
	if res.Offline {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("saved locally; no backend was reachable"))
	}
	return nil
}
