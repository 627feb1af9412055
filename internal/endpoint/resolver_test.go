// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"errors"
	"testing"
)

type memSticky struct {
	url     string
	saveErr error
}

func (m *memSticky) StickyEndpoint() string { return m.url }
func (m *memSticky) SetStickyEndpoint(url string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.url = url
	return nil
}

func urls() []string {
	return []string{
		"https://api.thinktank.example",
		"http://localhost:8080",
		"http://127.0.0.1:9999", // mock tail
	}
}

func TestResolver_WalksInConfiguredOrder(t *testing.T) {
	r := NewResolver(urls(), &memSticky{})

	got, err := r.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got != "https://api.thinktank.example" {
		t.Errorf("first candidate = %q", got)
	}

	got, err = r.Advance()
	if err != nil || got != "http://localhost:8080" {
		t.Errorf("second candidate = %q, %v", got, err)
	}
	got, err = r.Advance()
	if err != nil || got != "http://127.0.0.1:9999" {
		t.Errorf("third candidate = %q, %v", got, err)
	}

	if _, err = r.Advance(); !errors.Is(err, ErrExhausted) {
		t.Errorf("after last candidate err = %v, want ErrExhausted", err)
	}
}

func TestResolver_StickyTriedFirst(t *testing.T) {
	sticky := &memSticky{url: "http://localhost:8080"}
	r := NewResolver(urls(), sticky)

	got, _ := r.Current()
	if got != "http://localhost:8080" {
		t.Fatalf("sticky should be tried first, got %q", got)
	}

	// The walk still covers everything exactly once.
	seen := map[string]bool{got: true}
	for {
		next, err := r.Advance()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if seen[next] {
			t.Errorf("candidate %q handed out twice", next)
		}
		seen[next] = true
	}
	if len(seen) != 3 {
		t.Errorf("walk covered %d candidates, want 3", len(seen))
	}
}

func TestResolver_StaleStickyIgnored(t *testing.T) {
	sticky := &memSticky{url: "http://gone.example"}
	r := NewResolver(urls(), sticky)

	got, _ := r.Current()
	if got != "https://api.thinktank.example" {
		t.Errorf("stale sticky should fall back to configured order, got %q", got)
	}
}

func TestResolver_RecordSuccessPersists(t *testing.T) {
	sticky := &memSticky{}
	r := NewResolver(urls(), sticky)

	r.RecordSuccess("http://localhost:8080/")
	if sticky.url != "http://localhost:8080" {
		t.Errorf("sticky = %q, want normalized winner", sticky.url)
	}

	// A new walk starts at the recorded winner.
	r.Reset()
	got, _ := r.Current()
	if got != "http://localhost:8080" {
		t.Errorf("walk after success starts at %q", got)
	}
}

func TestResolver_RecordSuccessSaveFailureIsSwallowed(t *testing.T) {
	sticky := &memSticky{saveErr: errors.New("disk full")}
	r := NewResolver(urls(), sticky)
	// Must not panic or surface the error.
	r.RecordSuccess("http://localhost:8080")
}

func TestResolver_Dedupe(t *testing.T) {
	r := NewResolver([]string{
		"http://localhost:8080",
		"http://localhost:8080/",
		"  http://localhost:8080  ",
		"https://api.thinktank.example",
	}, nil)

	if got := len(r.Candidates()); got != 2 {
		t.Errorf("candidates = %d, want 2 after de-duplication", got)
	}
}

func TestResolver_Empty(t *testing.T) {
	r := NewResolver(nil, nil)
	if _, err := r.Current(); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Current on empty = %v, want ErrNoCandidates", err)
	}
	if _, err := r.Advance(); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Advance on empty = %v, want ErrNoCandidates", err)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"http://localhost:8080", true},
		{"https://api.thinktank.example", true},
		{" http://localhost:8080 ", true},
		{"ftp://example.com", false},
		{"localhost:8080", false},
		{"", false},
		{"http://", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.raw); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
