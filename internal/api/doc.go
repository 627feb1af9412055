// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for communicating with a Think Tank
// backend.
//
// Backends of different vintages answer the chat endpoint with different
// payload shapes; Normalize folds all of them into a single Reply so the
// rest of the client never branches on wire format.
package api
