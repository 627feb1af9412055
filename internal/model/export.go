// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ExportMarkdown exports the conversation as a Markdown formatted string,
// including metadata, timestamps, and role labels.
func (c *Conversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + c.DisplayTitle() + "\n\n")
	sb.WriteString("Conversation: " + c.ID + "\n")
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**")
		if model := msg.PrimaryModel(); model != "" {
			sb.WriteString(" _(" + model + ")_")
		}
		sb.WriteString(" (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		if !msg.Synced {
			sb.WriteString("\n\n_saved locally_")
		}
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// ExportJSON exports the conversation as pretty-printed JSON.
func (c *Conversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
