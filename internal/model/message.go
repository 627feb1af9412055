// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minerva-ai/thinktank-cli/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Think Tank"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MODEL ATTRIBUTION
// =============================================================================

// ModelContribution records one model's ranked contribution to a reply.
// Display-only: nothing downstream interprets score or reason.
type ModelContribution struct {
	Model  string  `json:"model"`
	Score  float64 `json:"score,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// ModelInfo carries attribution for an assistant reply: the primary model
// that produced the text, and optionally the ranked contributions of the
// other models consulted by the Think Tank.
type ModelInfo struct {
	Primary       string              `json:"primary"`
	Contributions []ModelContribution `json:"contributions,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Messages are created once and never mutated after append, with one
// exception: Synced flips to true when the backend acknowledges
// persistence of a reply that was initially recorded from a fallback path.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content (assistant content may embed simple markdown)
	Content string `json:"content"`

	// Attribution, present on assistant messages when the backend sent it
	ModelInfo *ModelInfo `json:"model_info,omitempty"`

	// Synced is true once the backend acknowledged this turn; false for
	// content authored from the offline fallback path.
	Synced bool `json:"synced"`
}

// NewMessageID generates a message ID of the form <role>-<millis>-<random>.
// The timestamp component keeps IDs roughly sortable; the random suffix
// makes collisions between rapid sends impossible in practice.
func NewMessageID(role Role) string {
	millis := time.Now().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return string(role) + "-" + util.Int64ToString(millis) + "-" + suffix
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewMessageID(role),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message. User messages are locally
// authoritative, so they are always marked synced.
func NewUserMessage(content string) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Synced = true
	return msg
}

// NewAssistantMessage creates an assistant message with attribution.
// synced records whether the backend produced and acknowledged the text.
func NewAssistantMessage(content string, info *ModelInfo, synced bool) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.ModelInfo = info
	msg.Synced = synced
	return msg
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	msg := NewMessage(RoleSystem, content)
	msg.Synced = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Preview returns a single-line truncated preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.CollapseLine(m.Content), maxRunes)
}

// PrimaryModel returns the attributed model name, or "" if unattributed.
func (m *Message) PrimaryModel() string {
	if m.ModelInfo == nil {
		return ""
	}
	return m.ModelInfo.Primary
}
