// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minerva-ai/thinktank-cli/internal/api"
)

// =============================================================================
// ERRORS
// =============================================================================

// ExchangeError represents a WebSocket transport error.
type ExchangeError struct {
	Message string
	Cause   error
}

func (e *ExchangeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CLIENT
// =============================================================================

// maxFrameBytes bounds the size of a single response frame.
const maxFrameBytes = 4 << 20

// Client performs single-shot chat exchanges over WebSocket.
// Safe for concurrent use; each exchange opens its own connection.
type Client struct {
	dialer *websocket.Dialer
}

// NewClient creates a WebSocket chat client.
func NewClient() *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// URL derives the WebSocket chat URL from an HTTP endpoint base URL:
// the scheme flips http->ws (https->wss) and /ws/chat is appended.
func URL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", &ExchangeError{Message: "invalid endpoint URL", Cause: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a WebSocket URL.
	default:
		return "", &ExchangeError{Message: "unsupported endpoint scheme: " + u.Scheme}
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat"
	return u.String(), nil
}

// Exchange dials the endpoint, writes one request frame, reads one response
// frame, and returns the normalized reply. The context bounds the entire
// exchange, dial included.
func (c *Client) Exchange(ctx context.Context, baseURL string, req *api.ChatRequest) (*api.Reply, error) {
	wsURL, err := URL(baseURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, &ExchangeError{Message: "websocket dial failed", Cause: err}
	}
	defer conn.Close()

	conn.SetReadLimit(maxFrameBytes)
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteJSON(req); err != nil {
		return nil, &ExchangeError{Message: "websocket write failed", Cause: err}
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return nil, &ExchangeError{Message: "websocket read failed", Cause: err}
	}

	// Best-effort clean shutdown; the reply frame is already in hand.
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return api.Normalize(frame)
}
