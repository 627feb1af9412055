// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minerva-ai/thinktank-cli/internal/util"
)

// MaxMessages is the default maximum number of messages retained per
// conversation. When exceeded, the oldest non-system messages are evicted.
const MaxMessages = 500

// TitleMinMessages is how many messages a conversation needs before a title
// is auto-derived from the first user message.
const TitleMinMessages = 3

// titleMaxRunes bounds the auto-derived title length.
const titleMaxRunes = 40

// WelcomeText is the seeded system entry every conversation starts with.
// Having it in place before any user turn keeps empty-state rendering
// trivial for every view.
const WelcomeText = "Welcome to the Think Tank. Ask anything; responses are " +
	"synthesized across the available models."

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat thread with history and metadata.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TitleEdited latches once a user sets the title explicitly; an edited
	// title is never overwritten by auto-derivation.
	TitleEdited bool `json:"title_edited,omitempty"`

	// ProjectContext is an opaque association to an external project
	// identifier. Passed through, never interpreted.
	ProjectContext string `json:"project_context,omitempty"`

	// Messages in insertion order; insertion order is conversation order
	// and is authoritative for replay.
	Messages []*Message `json:"messages"`

	// MaxMessages caps retained history (0 means MaxMessages default).
	MaxMessages int `json:"-"`
}

// NewConversationID generates a conversation ID of the form
// conv-<millis>-<random>, mirroring message ID generation.
func NewConversationID() string {
	millis := time.Now().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "conv-" + util.Int64ToString(millis) + "-" + suffix
}

// NewConversation creates a conversation seeded with the welcome entry.
func NewConversation(title string) *Conversation {
	now := time.Now()
	conv := &Conversation{
		ID:        NewConversationID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0, 8),
	}
	if title != "" {
		conv.Title = title
		conv.TitleEdited = true
	}
	conv.Messages = append(conv.Messages, NewSystemMessage(WelcomeText))
	return conv
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the conversation. The append is idempotent on
// message ID: a second append of the same ID is a no-op and returns false.
func (c *Conversation) Append(msg *Message) bool {
	if msg == nil || msg.ID == "" {
		return false
	}
	if c.HasMessage(msg.ID) {
		return false
	}

	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.pruneOldMessages()
	return true
}

// HasMessage reports whether a message with the given ID is present.
func (c *Conversation) HasMessage(id string) bool {
	for _, m := range c.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// GetMessage returns a message by ID, or nil.
func (c *Conversation) GetMessage(id string) *Message {
	for _, m := range c.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// MarkSynced flips the synced flag on a message once the backend has
// acknowledged it. Returns false if the message is unknown.
func (c *Conversation) MarkSynced(id string) bool {
	msg := c.GetMessage(id)
	if msg == nil {
		return false
	}
	msg.Synced = true
	return true
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// FirstUserMessage returns the earliest user message, or nil.
func (c *Conversation) FirstUserMessage() *Message {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m
		}
	}
	return nil
}

// MessageCount returns the number of messages, welcome entry included.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// UserTurnCount returns the number of user and assistant messages.
func (c *Conversation) UserTurnCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// pruneOldMessages evicts the oldest non-system messages once the retained
// count exceeds the cap. System messages (the welcome entry) are preserved.
func (c *Conversation) pruneOldMessages() {
	limit := c.MaxMessages
	if limit <= 0 {
		limit = MaxMessages
	}
	if len(c.Messages) <= limit {
		return
	}

	var system []*Message
	var rest []*Message
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	keep := limit - len(system)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}

	c.Messages = make([]*Message, 0, len(system)+len(rest))
	c.Messages = append(c.Messages, system...)
	c.Messages = append(c.Messages, rest...)
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-derives a title from the first user message once the
// conversation has enough history. A user-edited title is never replaced.
func (c *Conversation) updateTitle() {
	if c.TitleEdited || c.Title != "" {
		return
	}
	if len(c.Messages) < TitleMinMessages {
		return
	}
	first := c.FirstUserMessage()
	if first == nil {
		return
	}
	c.Title = first.Preview(titleMaxRunes)
}

// SetTitle sets the title explicitly and latches it against auto-derivation.
func (c *Conversation) SetTitle(title string) {
	c.Title = strings.TrimSpace(title)
	c.TitleEdited = true
	c.UpdatedAt = time.Now()
}

// DisplayTitle returns the title or a default for untitled conversations.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New conversation"
}

// =============================================================================
// METADATA
// =============================================================================

// Meta holds lightweight metadata for listing without loading bodies.
type Meta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Meta returns the index entry for this conversation.
func (c *Conversation) Meta() Meta {
	preview := ""
	if first := c.FirstUserMessage(); first != nil {
		preview = first.Preview(80)
	}
	return Meta{
		ID:           c.ID,
		Title:        c.DisplayTitle(),
		Preview:      preview,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		msgCopy := *m
		if m.ModelInfo != nil {
			infoCopy := *m.ModelInfo
			infoCopy.Contributions = append([]ModelContribution(nil), m.ModelInfo.Contributions...)
			msgCopy.ModelInfo = &infoCopy
		}
		clone.Messages[i] = &msgCopy
	}
	return &clone
}
