// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-ai/thinktank-cli/internal/api"
)

func TestURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/chat"},
		{"https://api.thinktank.example", "wss://api.thinktank.example/ws/chat"},
		{"http://localhost:8080/", "ws://localhost:8080/ws/chat"},
		{"ws://localhost:8080", "ws://localhost:8080/ws/chat"},
	}
	for _, tc := range cases {
		got, err := URL(tc.base)
		require.NoError(t, err, tc.base)
		assert.Equal(t, tc.want, got)
	}

	_, err := URL("ftp://example.com")
	assert.Error(t, err)
}

func TestExchange_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws/chat", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req api.ChatRequest
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, "hello", req.Message)

		resp, _ := json.Marshal(map[string]any{
			"response":        "ws says hi",
			"conversation_id": req.ConversationID,
		})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, resp))
	}))
	defer srv.Close()

	client := NewClient()
	reply, err := client.Exchange(context.Background(), srv.URL, &api.ChatRequest{
		Message:        "hello",
		ConversationID: "conv-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws says hi", reply.Text)
	assert.Equal(t, "conv-7", reply.ConversationID)
}

func TestExchange_UpgradeRefused(t *testing.T) {
	// Plain HTTP server that never upgrades.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Exchange(context.Background(), srv.URL, &api.ChatRequest{Message: "x"})
	require.Error(t, err)

	var xe *ExchangeError
	assert.ErrorAs(t, err, &xe)
}

func TestExchange_ContextDeadline(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Read the request but never answer.
		conn.ReadMessage()
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient()
	_, err := client.Exchange(ctx, srv.URL, &api.ChatRequest{Message: "x"})
	require.Error(t, err)
}
