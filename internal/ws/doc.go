// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws implements the WebSocket chat transport.
//
// Backends that expose /ws/chat accept one request frame and answer with
// one response frame using the same payload shapes as the REST endpoint.
// The dispatcher tries this transport first and falls back to REST when the
// upgrade fails, so a REST-only backend costs one extra round trip at most.
package ws
