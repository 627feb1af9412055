// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/minerva-ai/thinktank-cli/internal/model"
)

// =============================================================================
// WIRE ENVELOPE
// =============================================================================

// wireResponse covers every chat payload shape the deployed backends use.
// Exactly one of the text-bearing fields is expected to be set; they are
// checked in precedence order.
type wireResponse struct {
	Response  string            `json:"response,omitempty"`
	Message   string            `json:"message,omitempty"`
	Text      string            `json:"text,omitempty"`
	Content   string            `json:"content,omitempty"`
	Responses map[string]string `json:"responses,omitempty"`

	ConversationID string         `json:"conversation_id,omitempty"`
	ModelInfo      *wireModelInfo `json:"model_info,omitempty"`
}

type wireModelInfo struct {
	Primary       string             `json:"primary_model,omitempty"`
	Contributions []wireContribution `json:"contributions,omitempty"`
}

type wireContribution struct {
	Model  string  `json:"model"`
	Score  float64 `json:"score,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize folds a raw chat response body into a Reply. Unknown fields are
// ignored; a payload with no recognized text field yields ErrEmptyReply so
// the caller treats the endpoint as failed and moves on.
func Normalize(body []byte) (*Reply, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	reply := &Reply{
		ConversationID: wire.ConversationID,
		ModelInfo:      wire.ModelInfo.toModel(),
	}

	switch {
	case wire.Response != "":
		reply.Text = wire.Response
	case wire.Message != "":
		reply.Text = wire.Message
	case wire.Text != "":
		reply.Text = wire.Text
	case wire.Content != "":
		reply.Text = wire.Content
	case len(wire.Responses) > 0:
		normalizeMultiModel(wire.Responses, reply)
	}

	if strings.TrimSpace(reply.Text) == "" {
		return nil, ErrEmptyReply
	}
	return reply, nil
}

// normalizeMultiModel handles the per-model response map: the first model
// in sorted key order supplies the text and becomes the primary, every
// model is recorded as a contribution. Sorted order keeps the choice
// deterministic across identical payloads.
func normalizeMultiModel(responses map[string]string, reply *Reply) {
	models := make([]string, 0, len(responses))
	for name := range responses {
		models = append(models, name)
	}
	sort.Strings(models)

	primary := ""
	for _, name := range models {
		if strings.TrimSpace(responses[name]) != "" {
			primary = name
			break
		}
	}
	if primary == "" {
		return
	}
	reply.Text = responses[primary]

	// Backend attribution wins over the derived one.
	if reply.ModelInfo != nil {
		return
	}
	info := &model.ModelInfo{Primary: primary}
	for _, name := range models {
		info.Contributions = append(info.Contributions, model.ModelContribution{Model: name})
	}
	reply.ModelInfo = info
}

func (w *wireModelInfo) toModel() *model.ModelInfo {
	if w == nil {
		return nil
	}
	info := &model.ModelInfo{Primary: w.Primary}
	for _, c := range w.Contributions {
		info.Contributions = append(info.Contributions, model.ModelContribution{
			Model:  c.Model,
			Score:  c.Score,
			Reason: c.Reason,
		})
	}
	return info
}
