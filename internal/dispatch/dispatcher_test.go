// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-ai/thinktank-cli/internal/api"
	"github.com/minerva-ai/thinktank-cli/internal/endpoint"
	"github.com/minerva-ai/thinktank-cli/internal/model"
	"github.com/minerva-ai/thinktank-cli/internal/offline"
	"github.com/minerva-ai/thinktank-cli/internal/store"
)

// goodBackend answers every chat request and counts hits.
func goodBackend(t *testing.T, text string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req api.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response":        text,
			"conversation_id": req.ConversationID,
			"model_info":      map[string]any{"primary_model": "minerva-7b"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// deadBackend refuses every request and counts hits.
func deadBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newDispatcher(t *testing.T, candidates []string) (*Dispatcher, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir(), store.Options{DisableSearch: true})
	t.Cleanup(func() { st.Close() })
	res := endpoint.NewResolver(candidates, st)
	d := New(st, res, Config{
		AttemptTimeout:   2 * time.Second,
		DisableWebSocket: true,
	})
	return d, st
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSend_Success(t *testing.T) {
	backend, _ := goodBackend(t, "the answer")
	d, st := newDispatcher(t, []string{backend.URL})

	res, err := d.Send(context.Background(), "", "what is the question")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "the answer", res.Reply.Content)
	assert.True(t, res.Reply.Synced)
	assert.Equal(t, "minerva-7b", res.Reply.PrimaryModel())
	assert.Equal(t, backend.URL, res.Endpoint)
	assert.False(t, res.Offline)
	assert.False(t, res.Stale)

	// Both messages persisted, in order, after the welcome entry.
	conv, err := st.Load(res.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 3, conv.MessageCount())
	assert.Equal(t, model.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, "what is the question", conv.Messages[1].Content)
	assert.Equal(t, model.RoleAssistant, conv.Messages[2].Role)

	// The winner is now sticky.
	assert.Equal(t, backend.URL, st.StickyEndpoint())
}

func TestSend_CreatesActiveConversationWhenNoneExists(t *testing.T) {
	backend, _ := goodBackend(t, "hi")
	d, st := newDispatcher(t, []string{backend.URL})

	require.Equal(t, "", st.ActiveID())
	res, err := d.Send(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, st.ActiveID())
}

func TestSend_BlankInputIsNoOp(t *testing.T) {
	backend, hits := goodBackend(t, "hi")
	d, st := newDispatcher(t, []string{backend.URL})

	res, err := d.Send(context.Background(), "", "   \n\t  ")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, hits.Load(), "blank input must not reach the network")
	assert.Empty(t, st.List(), "blank input must not create a conversation")
}

// =============================================================================
// WIRE CONTRACT
// =============================================================================

// capturingBackend records the last decoded request body.
func capturingBackend(t *testing.T) (*httptest.Server, *atomic.Pointer[api.ChatRequest]) {
	t.Helper()
	var last atomic.Pointer[api.ChatRequest]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		last.Store(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestSend_RequestsBackendMemoryByDefault(t *testing.T) {
	backend, last := capturingBackend(t)
	d, _ := newDispatcher(t, []string{backend.URL})

	_, err := d.Send(context.Background(), "", "hello")
	require.NoError(t, err)

	req := last.Load()
	require.NotNil(t, req)
	assert.Equal(t, "hello", req.Message)
	assert.NotEmpty(t, req.ConversationID)
	assert.True(t, req.StoreInMemory, "store_in_memory must default to true on the wire")
}

func TestSend_StoreInMemoryOptOut(t *testing.T) {
	backend, last := capturingBackend(t)
	st := store.New(t.TempDir(), store.Options{DisableSearch: true})
	t.Cleanup(func() { st.Close() })
	d := New(st, endpoint.NewResolver([]string{backend.URL}, st), Config{
		AttemptTimeout:       2 * time.Second,
		DisableWebSocket:     true,
		DisableStoreInMemory: true,
	})

	_, err := d.Send(context.Background(), "", "forget this")
	require.NoError(t, err)

	req := last.Load()
	require.NotNil(t, req)
	assert.False(t, req.StoreInMemory)
}

// =============================================================================
// FALLBACK WALK
// =============================================================================

func TestSend_FallsThroughToSecondEndpoint(t *testing.T) {
	dead, deadHits := deadBackend(t)
	good, goodHits := goodBackend(t, "recovered")
	d, st := newDispatcher(t, []string{dead.URL, good.URL})

	res, err := d.Send(context.Background(), "", "try hard")
	require.NoError(t, err)

	assert.Equal(t, "recovered", res.Reply.Content)
	assert.Equal(t, good.URL, res.Endpoint)
	assert.Equal(t, int32(1), deadHits.Load())
	assert.Equal(t, int32(1), goodHits.Load())
	assert.Equal(t, good.URL, st.StickyEndpoint())
}

func TestSend_StickyWinnerTriedFirstNextSend(t *testing.T) {
	dead, deadHits := deadBackend(t)
	good, _ := goodBackend(t, "ok")
	d, _ := newDispatcher(t, []string{dead.URL, good.URL})

	_, err := d.Send(context.Background(), "", "first")
	require.NoError(t, err)
	require.Equal(t, int32(1), deadHits.Load())

	// The second send starts at the sticky winner and skips the dead one.
	_, err = d.Send(context.Background(), "", "second")
	require.NoError(t, err)
	assert.Equal(t, int32(1), deadHits.Load(), "dead endpoint should not be retried")
}

func TestSend_ExhaustionYieldsOfflineFallback(t *testing.T) {
	dead1, _ := deadBackend(t)
	dead2, _ := deadBackend(t)
	d, st := newDispatcher(t, []string{dead1.URL, dead2.URL})

	res, err := d.Send(context.Background(), "", "anyone there")
	require.NoError(t, err, "exhaustion is a degraded answer, not an error")

	assert.True(t, res.Offline)
	assert.Empty(t, res.Endpoint)
	assert.False(t, res.Reply.Synced, "fallback replies are never synced")
	assert.True(t, offline.IsFallback(res.Reply))

	// The user's message survives in history either way.
	conv, _ := st.Load(res.ConversationID)
	assert.Equal(t, "anyone there", conv.Messages[1].Content)
}

func TestSend_ExactlyOneTerminalReplyPerSend(t *testing.T) {
	dead, _ := deadBackend(t)
	good, _ := goodBackend(t, "ok")
	d, st := newDispatcher(t, []string{dead.URL, good.URL})

	res, err := d.Send(context.Background(), "", "count me")
	require.NoError(t, err)

	conv, _ := st.Load(res.ConversationID)
	assistants := 0
	for _, m := range conv.Messages {
		if m.Role == model.RoleAssistant {
			assistants++
		}
	}
	assert.Equal(t, 1, assistants)
}

// =============================================================================
// OFFLINE MODE
// =============================================================================

func TestSend_NoNetworkModeShortCircuits(t *testing.T) {
	backend, hits := goodBackend(t, "unreachable")
	d, _ := newDispatcher(t, []string{backend.URL})

	offline.SetEnabled(true)
	defer offline.SetEnabled(false)

	res, err := d.Send(context.Background(), "", "local only")
	require.NoError(t, err)
	assert.True(t, res.Offline)
	assert.Zero(t, hits.Load(), "no-network mode must not dial")
}

// =============================================================================
// STALENESS
// =============================================================================

func TestSend_StaleWhenActiveConversationChanged(t *testing.T) {
	backend, _ := goodBackend(t, "late reply")
	d, st := newDispatcher(t, []string{backend.URL})

	target := st.Create("")
	other := st.Create("")
	require.NoError(t, st.SetActive(other.ID))

	res, err := d.Send(context.Background(), target.ID, "sent to background thread")
	require.NoError(t, err)

	assert.True(t, res.Stale)
	// Persisted to its own conversation regardless.
	conv, _ := st.Load(target.ID)
	assert.Equal(t, "late reply", conv.LastMessage().Content)
	// The other conversation is untouched.
	untouched, _ := st.Load(other.ID)
	assert.Equal(t, 1, untouched.MessageCount())
}

func TestSend_ReplyLandsInSendingConversation(t *testing.T) {
	// The client owns conversation threading. A backend that echoes a
	// different conversation_id must not retarget local history.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response":        "pinned",
			"conversation_id": "server-555",
		})
	}))
	t.Cleanup(srv.Close)
	d, st := newDispatcher(t, []string{srv.URL})

	target := st.Create("")
	res, err := d.Send(context.Background(), target.ID, "where do I land")
	require.NoError(t, err)

	assert.Equal(t, target.ID, res.ConversationID)
	conv, err := st.Load(target.ID)
	require.NoError(t, err)
	assert.Equal(t, "pinned", conv.LastMessage().Content)

	_, err = st.Load("server-555")
	assert.ErrorIs(t, err, store.ErrConversationNotFound,
		"the backend's id must not create a local conversation")
}

// =============================================================================
// EVENTS
// =============================================================================

func TestSend_EmitsEventsInOrder(t *testing.T) {
	backend, _ := goodBackend(t, "evented")
	d, _ := newDispatcher(t, []string{backend.URL})

	var events []Event
	d.Subscribe(func(ev Event) { events = append(events, ev) })

	res, err := d.Send(context.Background(), "", "watch this")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventUserMessage, events[0].Type)
	assert.Equal(t, "watch this", events[0].Message.Content)
	assert.Equal(t, EventReply, events[1].Type)
	assert.Equal(t, res.Reply.ID, events[1].Message.ID)
	assert.Equal(t, backend.URL, events[1].Endpoint)
}

func TestSubscribe_FromHandlerDoesNotDeadlock(t *testing.T) {
	backend, _ := goodBackend(t, "ok")
	d, _ := newDispatcher(t, []string{backend.URL})

	// A handler that registers another subscriber mid-delivery. The new
	// subscriber misses the in-flight event and sees the next one.
	var late atomic.Int32
	d.Subscribe(func(ev Event) {
		if ev.Type == EventUserMessage {
			d.Subscribe(func(Event) { late.Add(1) })
		}
	})

	_, err := d.Send(context.Background(), "", "reentrant")
	require.NoError(t, err)
	assert.Equal(t, int32(1), late.Load())
}
