// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Renderer renders reply bodies for the terminal. Markdown formatting is
// applied only when stdout is a TTY and plain mode is off; piped output
// stays byte-exact.
type Renderer struct {
	plain bool
	tr    *glamour.TermRenderer
}

// NewRenderer creates a renderer for the given theme ("auto", "dark",
// "light"). A glamour initialization failure silently degrades to plain
// text.
func NewRenderer(theme string, plain bool) *Renderer {
	r := &Renderer{plain: plain || !IsStdoutTTY()}
	if r.plain {
		return r
	}

	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(GetTerminalWidth()),
	}
	switch theme {
	case "dark":
		opts = append(opts, glamour.WithStandardStyle("dark"))
	case "light":
		opts = append(opts, glamour.WithStandardStyle("light"))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}

	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r.plain = true
		return r
	}
	r.tr = tr
	return r
}

// Render formats a reply body for display.
func (r *Renderer) Render(markdown string) string {
	if r.plain || r.tr == nil {
		return markdown
	}
	out, err := r.tr.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
