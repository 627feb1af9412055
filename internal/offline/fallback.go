// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"strings"

	"github.com/minerva-ai/thinktank-cli/internal/model"
)

// =============================================================================
// FALLBACK REPLY
// =============================================================================

// FallbackModel is the attribution recorded on locally produced replies.
const FallbackModel = "offline"

// fallbackText is the single canned reply used for every offline answer.
// One canonical message keeps the behavior predictable; the user's input is
// echoed so the transcript shows what will be resent once a backend is
// reachable again.
const fallbackText = "I can't reach any Think Tank backend right now, so this " +
	"reply was generated locally. Your message has been saved and the " +
	"conversation will sync once a backend is available again."

// Fallback produces the canned offline reply for the given user input.
// The returned message is never synced: it exists only in local history.
func Fallback(input string) *model.Message {
	text := fallbackText
	if preview := previewInput(input); preview != "" {
		text += "\n\nSaved message: " + preview
	}
	info := &model.ModelInfo{
		Primary: FallbackModel,
		Contributions: []model.ModelContribution{
			{Model: FallbackModel, Reason: "no backend reachable"},
		},
	}
	return model.NewAssistantMessage(text, info, false)
}

// IsFallback reports whether a message was produced by the local fallback.
func IsFallback(msg *model.Message) bool {
	return msg != nil && msg.PrimaryModel() == FallbackModel
}

func previewInput(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	const max = 120
	runes := []rune(input)
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return input
}
