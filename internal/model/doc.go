// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages
// exchanged with the Think Tank backend.
//
// A Conversation is an append-only, insertion-ordered sequence of Messages
// plus lightweight metadata (title, timestamps, optional project context).
// Appends are idempotent on message ID so the same turn can never be
// recorded twice, regardless of how many code paths attempt to show it.
package model
