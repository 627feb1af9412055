// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

// RunSessions manages stored conversations:
//
//	thinktank sessions                  list conversations
//	thinktank sessions open <id>        make a conversation active
//	thinktank sessions delete <id>      delete a conversation
//	thinktank sessions search <query>   full-text search
//	thinktank sessions export <id>      print as markdown (--json for JSON)
func RunSessions(app *App, args *ArgParser) error {
	switch args.Positional(1) {
	case "", "list":
		printSessionList(app)
		return nil

	case "open":
		id := args.Positional(2)
		if id == "" {
			return fmt.Errorf("usage: thinktank sessions open <id>")
		}
		if err := app.Store.SetActive(id); err != nil {
			return fmt.Errorf("unknown conversation: %s", id)
		}
		fmt.Println(SuccessStyle.Render("Active conversation: " + id))
		return nil

	case "delete":
		id := args.Positional(2)
		if id == "" {
			return fmt.Errorf("usage: thinktank sessions delete <id>")
		}
		if err := app.Store.Delete(id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Println(SuccessStyle.Render("Deleted " + id))
		return nil

	case "search":
		query := strings.Join(args.PositionalFrom(2), " ")
		if query == "" {
			return fmt.Errorf("usage: thinktank sessions search <query>")
		}
		printSearchResults(app, query)
		return nil

	case "export":
		id := args.Positional(2)
		if id == "" {
			id = app.Store.ActiveID()
		}
		if id == "" {
			return fmt.Errorf("no conversation to export")
		}
		format := ""
		if args.BoolFlag("json") {
			format = "json"
		}
		printExport(app, id, format)
		return nil

	default:
		return fmt.Errorf("unknown sessions subcommand %q", args.Positional(1))
	}
}

func printSessionList(app *App) {
	metas := app.Store.List()
	if len(metas) == 0 {
		fmt.Println(DimStyle.Render("no conversations yet"))
		return
	}

	active := app.Store.ActiveID()
	for _, meta := range metas {
		marker := "  "
		if meta.ID == active {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Printf("%s%s  %s\n", marker, meta.ID, TitleStyle.Render(meta.Title))
		if meta.Preview != "" {
			fmt.Printf("    %s\n", DimStyle.Render(meta.Preview))
		}
		fmt.Printf("    %s\n", DimStyle.Render(fmt.Sprintf(
			"%d messages, updated %s", meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))))
	}
}
