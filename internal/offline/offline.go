// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNetworkBlocked is returned when a remote exchange is attempted
	// while no-network mode is active.
	ErrNetworkBlocked = errors.New("network operations disabled in offline mode")

	// ErrNonLocalhost is returned for non-localhost endpoints while
	// no-network mode is active.
	ErrNonLocalhost = errors.New("only localhost endpoints allowed in offline mode")

	// ErrInvalidURLScheme is returned for URL schemes other than http/https.
	// Blocks file://, javascript://, data:// and custom protocol handlers.
	ErrInvalidURLScheme = errors.New("endpoint URL scheme must be http or https")
)

// =============================================================================
// MODE
// =============================================================================

var (
	enabledMu sync.RWMutex
	enabled   bool
)

// SetEnabled turns no-network mode on or off for the whole process.
// When enabled, the dispatcher skips every remote endpoint and answers
// from the local fallback directly.
func SetEnabled(on bool) {
	enabledMu.Lock()
	defer enabledMu.Unlock()
	enabled = on
}

// Enabled reports whether no-network mode is active.
func Enabled() bool {
	enabledMu.RLock()
	defer enabledMu.RUnlock()
	return enabled
}

// StatusBadge returns "[OFFLINE]" when no-network mode is active, for
// prompt and status-line display.
func StatusBadge() string {
	if Enabled() {
		return "[OFFLINE]"
	}
	return ""
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to the local machine.
// Accepts "localhost" and any IPv4/IPv6 loopback address, with or without
// a port or IPv6 brackets.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	// net.IP.IsLoopback covers the whole 127.0.0.0/8 range and every
	// IPv6 loopback representation.
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEndpointURL checks whether an endpoint URL may be dialed.
// The scheme check is ALWAYS performed, independent of mode: http and
// https only. The localhost restriction applies only while no-network
// mode is active.
func ValidateEndpointURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrNetworkBlocked
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if Enabled() && !IsLocalhost(parsed.Host) {
		return ErrNonLocalhost
	}
	return nil
}
