// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides durable, client-local persistence of conversation
// threads, independent of network availability.
//
// Layout under the base directory (~/.thinktank by default):
//
//	conversation_<id>.json      full conversation body
//	conversations_index.json    lightweight listing index
//	active_conversation         pointer to the conversation receiving sends
//	api_endpoint                sticky endpoint-resolver choice
//	search.db                   derived SQLite FTS index over message content
//
// All persistence is best-effort: a storage failure degrades the store to
// memory-only operation for the remainder of the session instead of ever
// blocking a send. Bodies are written atomically so a crash leaves either
// the old or the new complete file.
package store
