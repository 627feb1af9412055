// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"log"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

// ResolverError represents an endpoint-selection error with errors.Is
// support.
type ResolverError struct {
	Message string
}

func (e *ResolverError) Error() string {
	return e.Message
}

func (e *ResolverError) Is(target error) bool {
	t, ok := target.(*ResolverError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrExhausted is returned by Advance once every candidate has been
	// tried for the current send.
	ErrExhausted = &ResolverError{Message: "all endpoints exhausted"}

	// ErrNoCandidates is returned when the resolver has an empty list.
	ErrNoCandidates = &ResolverError{Message: "no endpoint candidates configured"}
)

// =============================================================================
// STICKY STORE
// =============================================================================

// StickyStore persists the preferred endpoint across sessions. The
// conversation store implements it.
type StickyStore interface {
	StickyEndpoint() string
	SetStickyEndpoint(url string) error
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver walks an ordered list of endpoint candidates for one send at a
// time. Reset starts a new walk at the sticky choice (when it is still a
// candidate), Advance moves to the next candidate, and RecordSuccess
// persists the winner for future sends.
type Resolver struct {
	mu sync.Mutex

	candidates []string
	sticky     StickyStore

	// cursor indexes candidates in walk order for the current send.
	order  []int
	cursor int
}

// NewResolver creates a resolver over the ordered candidate URLs.
// Candidates are normalized (trailing slash trimmed) and de-duplicated,
// preserving first occurrence order.
func NewResolver(candidates []string, sticky StickyStore) *Resolver {
	seen := make(map[string]bool, len(candidates))
	normalized := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = Normalize(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		normalized = append(normalized, c)
	}

	r := &Resolver{
		candidates: normalized,
		sticky:     sticky,
	}
	r.resetLocked()
	return r
}

// Normalize canonicalizes an endpoint URL for comparison: trims whitespace
// and any trailing slash.
func Normalize(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// Valid reports whether raw parses as an absolute http or https URL.
func Valid(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Candidates returns the normalized candidate list in configured order.
func (r *Resolver) Candidates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.candidates...)
}

// =============================================================================
// WALK
// =============================================================================

// Reset begins a fresh walk for a new send. The sticky endpoint, when it is
// still in the candidate list, is tried first; the remaining candidates
// follow in configured order. A stale sticky value (no longer a candidate)
// is ignored.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Resolver) resetLocked() {
	r.cursor = 0
	r.order = r.order[:0]

	start := 0
	if r.sticky != nil {
		if pinned := Normalize(r.sticky.StickyEndpoint()); pinned != "" {
			for i, c := range r.candidates {
				if c == pinned {
					start = i
					break
				}
			}
		}
	}

	r.order = append(r.order, start)
	for i := range r.candidates {
		if i != start {
			r.order = append(r.order, i)
		}
	}
}

// Current returns the candidate the walk is pointing at.
func (r *Resolver) Current() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked()
}

func (r *Resolver) currentLocked() (string, error) {
	if len(r.candidates) == 0 {
		return "", ErrNoCandidates
	}
	if r.cursor >= len(r.order) {
		return "", ErrExhausted
	}
	return r.candidates[r.order[r.cursor]], nil
}

// Advance moves the walk to the next candidate and returns it, or
// ErrExhausted once every candidate has been handed out for this send.
func (r *Resolver) Advance() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.candidates) == 0 {
		return "", ErrNoCandidates
	}
	r.cursor++
	return r.currentLocked()
}

// RecordSuccess pins url as the sticky endpoint for future sends and
// sessions. Persistence failures are logged, never surfaced: stickiness is
// an optimization, not a correctness requirement.
func (r *Resolver) RecordSuccess(url string) {
	url = Normalize(url)
	if url == "" {
		return
	}

	r.mu.Lock()
	sticky := r.sticky
	r.mu.Unlock()

	if sticky == nil {
		return
	}
	if sticky.StickyEndpoint() == url {
		return
	}
	if err := sticky.SetStickyEndpoint(url); err != nil {
		log.Printf("endpoint: failed to persist sticky endpoint: %v", err)
	}
}
