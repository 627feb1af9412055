// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/minerva-ai/thinktank-cli/internal/dispatch"
	"github.com/minerva-ai/thinktank-cli/internal/model"
	"github.com/minerva-ai/thinktank-cli/internal/offline"
)

// =============================================================================
// CHAT COMMAND
// =============================================================================

// slashCommands feed liner's tab completion.
var slashCommands = []string{
	"/list", "/open", "/new", "/title", "/delete", "/search",
	"/export", "/endpoint", "/help", "/quit",
}

// RunChat starts the interactive REPL on the active conversation.
func RunChat(app *App, args *ArgParser) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) (out []string) {
		if !strings.HasPrefix(prefix, "/") {
			return nil
		}
		for _, cmd := range slashCommands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd)
			}
		}
		return out
	})

	histPath := filepath.Join(app.Config.Storage.DataDir, "chat_history")
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	conversationID := app.Store.EnsureActive()
	printTranscript(app, conversationID)
	fmt.Println(DimStyle.Render("Type a message, /help for commands, /quit to exit."))

	for {
		input, err := line.Prompt(prompt())
		if err == liner.ErrPromptAborted || err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, next := handleSlash(app, conversationID, input)
			if quit {
				return nil
			}
			conversationID = next
			continue
		}

		res, err := app.Dispatcher.Send(context.Background(), conversationID, input)
		if err != nil {
			fmt.Println(ErrorStyle.Render("error: " + err.Error()))
			continue
		}
		if res == nil {
			continue
		}
		if res.Stale {
			// The reply belongs to a conversation we already left.
			continue
		}
		printReply(app, res)
	}
}

func prompt() string {
	if badge := offline.StatusBadge(); badge != "" {
		return WarningStyle.Render(badge) + " you> "
	}
	return "you> "
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlash executes a slash command. Returns (quit, conversationID):
// commands that switch conversations return the new id.
func handleSlash(app *App, conversationID, input string) (bool, string) {
	fields := strings.Fields(input)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/quit", "/exit":
		return true, conversationID

	case "/help":
		printChatHelp()

	case "/list":
		printSessionList(app)

	case "/new":
		conv := app.Store.Create(rest)
		if err := app.Store.SetActive(conv.ID); err == nil {
			fmt.Println(SuccessStyle.Render("Started " + conv.DisplayTitle()))
			return false, conv.ID
		}

	case "/open":
		if rest == "" {
			fmt.Println(ErrorStyle.Render("usage: /open <conversation-id>"))
			break
		}
		if err := app.Store.SetActive(rest); err != nil {
			fmt.Println(ErrorStyle.Render("unknown conversation: " + rest))
			break
		}
		printTranscript(app, rest)
		return false, rest

	case "/title":
		if rest == "" {
			fmt.Println(ErrorStyle.Render("usage: /title <new title>"))
			break
		}
		if err := app.Store.SetTitle(conversationID, rest); err != nil {
			fmt.Println(ErrorStyle.Render("rename failed: " + err.Error()))
			break
		}
		fmt.Println(SuccessStyle.Render("Renamed to " + rest))

	case "/delete":
		target := rest
		if target == "" {
			target = conversationID
		}
		if err := app.Store.Delete(target); err != nil {
			fmt.Println(ErrorStyle.Render("delete failed: " + err.Error()))
			break
		}
		fmt.Println(SuccessStyle.Render("Deleted " + target))
		if target == conversationID {
			next := app.Store.EnsureActive()
			printTranscript(app, next)
			return false, next
		}

	case "/search":
		if rest == "" {
			fmt.Println(ErrorStyle.Render("usage: /search <query>"))
			break
		}
		printSearchResults(app, rest)

	case "/export":
		printExport(app, conversationID, rest)

	case "/endpoint":
		printEndpoints(app)

	default:
		fmt.Println(ErrorStyle.Render("unknown command " + cmd + " (try /help)"))
	}
	return false, conversationID
}

func printChatHelp() {
	fmt.Println(TitleStyle.Render("Commands"))
	help := [][2]string{
		{"/list", "list conversations"},
		{"/open <id>", "switch to a conversation"},
		{"/new [title]", "start a fresh conversation"},
		{"/title <text>", "rename the current conversation"},
		{"/delete [id]", "delete a conversation (default: current)"},
		{"/search <query>", "full-text search across history"},
		{"/export [md|json]", "print the current conversation"},
		{"/endpoint", "show endpoint candidates and the sticky choice"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Printf("  %-20s %s\n", h[0], DimStyle.Render(h[1]))
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printTranscript(app *App, conversationID string) {
	conv, err := app.Store.Load(conversationID)
	if err != nil {
		return
	}
	fmt.Println(TitleStyle.Render(conv.DisplayTitle()) + DimStyle.Render("  ("+conv.ID+")"))
	for _, msg := range conv.Messages {
		printMessage(app, msg)
	}
}

func printMessage(app *App, msg *model.Message) {
	switch msg.Role {
	case model.RoleUser:
		fmt.Println(UserLabelStyle.Render(msg.Role.DisplayName()+":") + " " + msg.Content)
	case model.RoleAssistant:
		label := AssistantLabelStyle.Render(msg.Role.DisplayName() + ":")
		if m := msg.PrimaryModel(); m != "" {
			label += ModelStyle.Render(" (" + m + ")")
		}
		fmt.Println(label)
		fmt.Println(app.Renderer.Render(msg.Content))
		if !msg.Synced {
			fmt.Println(WarningStyle.Render("  saved locally; will sync when a backend is reachable"))
		}
	default:
		fmt.Println(DimStyle.Render(msg.Content))
	}
}

func printReply(app *App, res *dispatch.Result) {
	printMessage(app, res.Reply)
	if res.Endpoint != "" {
		fmt.Println(DimStyle.Render("  via " + res.Endpoint))
	}
}

func printSearchResults(app *App, query string) {
	hits := app.Store.Search(query, 20)
	if len(hits) == 0 {
		fmt.Println(DimStyle.Render("no matches"))
		return
	}
	for _, h := range hits {
		fmt.Printf("%s %s %s\n",
			DimStyle.Render(h.ConversationID),
			UserLabelStyle.Render(h.Role+":"),
			h.Snippet)
	}
}

func printExport(app *App, conversationID, format string) {
	conv, err := app.Store.Load(conversationID)
	if err != nil {
		fmt.Println(ErrorStyle.Render("load failed: " + err.Error()))
		return
	}
	switch format {
	case "json":
		data, err := conv.ExportJSON()
		if err != nil {
			fmt.Println(ErrorStyle.Render("export failed: " + err.Error()))
			return
		}
		fmt.Println(string(data))
	default:
		fmt.Println(conv.ExportMarkdown())
	}
}

func printEndpoints(app *App) {
	sticky := app.Store.StickyEndpoint()
	fmt.Println(TitleStyle.Render("Endpoints"))
	for i, cand := range app.Resolver.Candidates() {
		marker := "  "
		if cand == sticky {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Printf("%s%d. %s\n", marker, i+1, cand)
	}
	if sticky == "" {
		fmt.Println(DimStyle.Render("no sticky endpoint yet"))
	}
}
