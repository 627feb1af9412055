// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"testing"
)

func TestNormalize_TextFieldPrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"response", `{"response":"from response"}`, "from response"},
		{"message", `{"message":"from message"}`, "from message"},
		{"text", `{"text":"from text"}`, "from text"},
		{"content", `{"content":"from content"}`, "from content"},
		{"response wins over text", `{"response":"winner","text":"loser"}`, "winner"},
		{"message wins over content", `{"message":"winner","content":"loser"}`, "winner"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply, err := Normalize([]byte(tc.body))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if reply.Text != tc.want {
				t.Errorf("Text = %q, want %q", reply.Text, tc.want)
			}
		})
	}
}

func TestNormalize_ConversationIDAndAttribution(t *testing.T) {
	body := `{
		"response": "hello",
		"conversation_id": "conv-42",
		"model_info": {
			"primary_model": "minerva-7b",
			"contributions": [
				{"model": "minerva-7b", "score": 0.9, "reason": "consensus"},
				{"model": "minerva-3b", "score": 0.3}
			]
		}
	}`
	reply, err := Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if reply.ConversationID != "conv-42" {
		t.Errorf("ConversationID = %q", reply.ConversationID)
	}
	if reply.ModelInfo == nil || reply.ModelInfo.Primary != "minerva-7b" {
		t.Fatalf("ModelInfo = %+v", reply.ModelInfo)
	}
	if len(reply.ModelInfo.Contributions) != 2 {
		t.Errorf("contributions = %d, want 2", len(reply.ModelInfo.Contributions))
	}
	if reply.ModelInfo.Contributions[0].Score != 0.9 {
		t.Errorf("score = %v", reply.ModelInfo.Contributions[0].Score)
	}
}

func TestNormalize_MultiModelMap(t *testing.T) {
	body := `{"responses":{"zephyr":"z answer","alpaca":"a answer","mixtral":"m answer"}}`
	reply, err := Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// Deterministic: first model in sorted order supplies the text.
	if reply.Text != "a answer" {
		t.Errorf("Text = %q, want the sorted-first model's answer", reply.Text)
	}
	if reply.ModelInfo == nil || reply.ModelInfo.Primary != "alpaca" {
		t.Fatalf("ModelInfo = %+v", reply.ModelInfo)
	}
	if len(reply.ModelInfo.Contributions) != 3 {
		t.Errorf("contributions = %d, want 3", len(reply.ModelInfo.Contributions))
	}
}

func TestNormalize_MultiModelSkipsEmptyAnswers(t *testing.T) {
	body := `{"responses":{"alpaca":"   ","mixtral":"real answer"}}`
	reply, err := Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if reply.Text != "real answer" {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.ModelInfo.Primary != "mixtral" {
		t.Errorf("Primary = %q", reply.ModelInfo.Primary)
	}
}

func TestNormalize_ExplicitAttributionWinsOverDerived(t *testing.T) {
	body := `{
		"responses": {"alpaca": "answer"},
		"model_info": {"primary_model": "council"}
	}`
	reply, err := Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if reply.ModelInfo.Primary != "council" {
		t.Errorf("Primary = %q, backend attribution should win", reply.ModelInfo.Primary)
	}
}

func TestNormalize_Failures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"no text field", `{"conversation_id":"conv-1"}`},
		{"whitespace only", `{"response":"   "}`},
		{"empty map", `{"responses":{}}`},
		{"map of blanks", `{"responses":{"a":"","b":"  "}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize([]byte(tc.body)); err == nil {
				t.Error("want error")
			}
		})
	}

	if _, err := Normalize([]byte(`{"responses":{}}`)); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("empty payload err = %v, want ErrEmptyReply", err)
	}
}

func TestNormalize_UnknownFieldsIgnored(t *testing.T) {
	body := `{"response":"ok","future_field":{"nested":true},"version":9}`
	reply, err := Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if reply.Text != "ok" {
		t.Errorf("Text = %q", reply.Text)
	}
}
