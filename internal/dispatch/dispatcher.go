// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/minerva-ai/thinktank-cli/internal/api"
	"github.com/minerva-ai/thinktank-cli/internal/endpoint"
	"github.com/minerva-ai/thinktank-cli/internal/model"
	"github.com/minerva-ai/thinktank-cli/internal/offline"
	"github.com/minerva-ai/thinktank-cli/internal/store"
	"github.com/minerva-ai/thinktank-cli/internal/util"
	"github.com/minerva-ai/thinktank-cli/internal/ws"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultAttemptTimeout bounds a single endpoint attempt. A slow endpoint
// consumes at most this much of the send before the walk moves on.
const DefaultAttemptTimeout = 10 * time.Second

// Config holds dispatcher options.
type Config struct {
	// AttemptTimeout bounds one endpoint attempt (default: 10s).
	AttemptTimeout time.Duration

	// DisableWebSocket skips the WebSocket transport and goes straight
	// to REST for every attempt.
	DisableWebSocket bool

	// DisableStoreInMemory clears store_in_memory on outbound requests.
	// By default every request asks the backend to keep the exchange in
	// its own short-term memory.
	DisableStoreInMemory bool
}

// =============================================================================
// RESULT
// =============================================================================

// Result describes a completed send. Reply is always non-nil: a send that
// reaches the pipeline produces exactly one terminal assistant message.
type Result struct {
	// ConversationID is the conversation the exchange was appended to.
	ConversationID string

	// UserMessage is the locally appended user message.
	UserMessage *model.Message

	// Reply is the terminal assistant message (backend reply or fallback).
	Reply *model.Message

	// Endpoint is the URL that answered; empty for fallback replies.
	Endpoint string

	// Offline reports that the reply is the local fallback.
	Offline bool

	// Stale reports that the user switched to another conversation while
	// the send was in flight. The reply is persisted to its conversation
	// regardless; views use this to skip rendering it in the current one.
	Stale bool
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher coordinates the store, endpoint resolver, and transports for
// message sends. Sends are serialized: overlapping calls queue on an
// internal mutex so history updates and stickiness stay coherent.
type Dispatcher struct {
	sendMu sync.Mutex

	store    *store.Store
	resolver *endpoint.Resolver
	rest     *api.Client
	wsClient *ws.Client
	config   Config

	subMu sync.RWMutex
	subs  []func(Event)
}

// New creates a dispatcher over the given store and resolver.
func New(st *store.Store, res *endpoint.Resolver, cfg Config) *Dispatcher {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Dispatcher{
		store:    st,
		resolver: res,
		rest:     api.NewClientWithConfig(&api.ClientConfig{Timeout: cfg.AttemptTimeout}),
		wsClient: ws.NewClient(),
		config:   cfg,
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventType classifies dispatcher notifications.
type EventType int

const (
	// EventUserMessage fires when the user's message is appended, before
	// any network attempt. Views render it immediately.
	EventUserMessage EventType = iota
	// EventReply fires when the terminal assistant message is appended.
	EventReply
)

// Event is a dispatcher notification.
type Event struct {
	Type           EventType
	ConversationID string
	Message        *model.Message
	Endpoint       string
	Offline        bool
}

// Subscribe registers a handler for send events. Handlers run synchronously
// on the sending goroutine and must not block.
func (d *Dispatcher) Subscribe(fn func(Event)) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.subs = append(d.subs, fn)
}

func (d *Dispatcher) emit(ev Event) {
	// Snapshot under the lock, invoke outside it: a handler may call
	// Subscribe without deadlocking.
	d.subMu.RLock()
	subs := make([]func(Event), len(d.subs))
	copy(subs, d.subs)
	d.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send runs the full pipeline for one user input.
//
// The input is normalized first; a blank input returns (nil, nil) without
// touching history or the network. An empty conversationID targets the
// active conversation, creating one if none exists. The user message is
// appended (and visible) before the first network attempt, so history is
// never lost to an unreachable backend.
//
// Send returns an error only for local preconditions (an invalid endpoint
// configuration); network failure is answered with the offline fallback.
func (d *Dispatcher) Send(ctx context.Context, conversationID, input string) (*Result, error) {
	input = util.NormalizeInput(input)
	if input == "" {
		return nil, nil
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	if conversationID == "" {
		conversationID = d.store.EnsureActive()
	}

	// Optimistic append: the user's words are durable before any attempt.
	userMsg := model.NewUserMessage(input)
	d.store.Append(conversationID, userMsg)
	d.emit(Event{Type: EventUserMessage, ConversationID: conversationID, Message: userMsg})

	reply, answeredBy := d.exchange(ctx, conversationID, input)

	isOffline := answeredBy == ""
	d.store.Append(conversationID, reply)
	d.emit(Event{
		Type:           EventReply,
		ConversationID: conversationID,
		Message:        reply,
		Endpoint:       answeredBy,
		Offline:        isOffline,
	})

	return &Result{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		Reply:          reply,
		Endpoint:       answeredBy,
		Offline:        isOffline,
		Stale:          d.store.ActiveID() != conversationID,
	}, nil
}

// exchange walks the endpoint candidates and returns the terminal assistant
// message plus the URL that answered ("" for the offline fallback).
func (d *Dispatcher) exchange(ctx context.Context, conversationID, input string) (*model.Message, string) {
	if offline.Enabled() {
		return offline.Fallback(input), ""
	}

	req := &api.ChatRequest{
		Message:        input,
		ConversationID: conversationID,
		StoreInMemory:  !d.config.DisableStoreInMemory,
	}

	d.resolver.Reset()
	url, err := d.resolver.Current()
	for err == nil {
		reply, attemptErr := d.attempt(ctx, url, req)
		if attemptErr == nil {
			d.resolver.RecordSuccess(url)
			return model.NewAssistantMessage(reply.Text, reply.ModelInfo, true), url
		}
		log.Printf("dispatch: endpoint %s failed: %v", url, attemptErr)

		if ctx.Err() != nil {
			// The caller gave up; don't burn through the rest of the list.
			break
		}
		url, err = d.resolver.Advance()
	}
	if err != nil && !errors.Is(err, endpoint.ErrExhausted) && !errors.Is(err, endpoint.ErrNoCandidates) {
		log.Printf("dispatch: endpoint walk stopped: %v", err)
	}

	return offline.Fallback(input), ""
}

// attempt runs one timeout-bounded exchange against a single endpoint,
// trying WebSocket first and falling back to REST within the same budget.
func (d *Dispatcher) attempt(ctx context.Context, url string, req *api.ChatRequest) (*api.Reply, error) {
	if err := offline.ValidateEndpointURL(url); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	if !d.config.DisableWebSocket {
		if reply, err := d.wsClient.Exchange(attemptCtx, url, req); err == nil {
			return reply, nil
		}
		if attemptCtx.Err() != nil {
			return nil, api.ErrTimeout
		}
	}
	return d.rest.Chat(attemptCtx, url, req)
}
