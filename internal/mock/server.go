// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minerva-ai/thinktank-cli/internal/api"
	"github.com/minerva-ai/thinktank-cli/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// ModelName is the attribution the mock stamps on every reply.
const ModelName = "mock"

// maxRequestBytes bounds a single chat request body.
const maxRequestBytes = 1 << 20

// =============================================================================
// SERVER
// =============================================================================

// Server is the in-process mock backend.
type Server struct {
	limiter *rate.Limiter
	httpSrv *http.Server
	url     string
}

// NewServer creates a mock backend. Requests beyond the rate limit get 429,
// matching how hosted backends behave under load so client handling of
// rate limits is exercised locally too.
func NewServer() *Server {
	s := &Server{
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 20),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving on addr ("127.0.0.1:0" picks a free port) and
// returns once the listener is accepting. The server runs until Shutdown.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock server listen failed: %w", err)
	}
	s.url = "http://" + ln.Addr().String()

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("mock: server stopped: %v", err)
		}
	}()
	return nil
}

// URL returns the base URL the server is reachable at. Valid after Start.
func (s *Server) URL() string {
	return s.url
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "model": ModelName})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req api.ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = model.NewConversationID()
	}

	resp := map[string]any{
		"response":        reply(req.Message),
		"conversation_id": conversationID,
		"model_info": map[string]any{
			"primary_model": ModelName,
			"contributions": []map[string]any{
				{"model": ModelName, "score": 1.0, "reason": "local mock backend"},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// reply produces a canned echo answer. Deterministic on input so tests can
// assert on it.
func reply(input string) string {
	input = strings.TrimSpace(input)
	const max = 200
	runes := []rune(input)
	if len(runes) > max {
		input = string(runes[:max-1]) + "…"
	}
	return "[mock] You said: " + input
}
