// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "github.com/minerva-ai/thinktank-cli/internal/model"

// =============================================================================
// REQUEST
// =============================================================================

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	// Message is the user's input text.
	Message string `json:"message"`

	// ConversationID threads the request into an existing server-side
	// conversation. Empty for a new conversation.
	ConversationID string `json:"conversation_id,omitempty"`

	// ProjectContext is an opaque project association, passed through.
	ProjectContext string `json:"project_context,omitempty"`

	// StoreInMemory asks the backend to keep the exchange in its own
	// short-term memory.
	StoreInMemory bool `json:"store_in_memory"`
}

// =============================================================================
// REPLY
// =============================================================================

// Reply is the normalized result of a chat exchange, independent of which
// wire shape the backend answered with.
type Reply struct {
	// Text is the assistant's response body.
	Text string

	// ConversationID echoes the server-side conversation, when provided.
	ConversationID string

	// ModelInfo attributes the response to the models that produced it.
	// Nil when the backend sent no attribution.
	ModelInfo *model.ModelInfo
}
