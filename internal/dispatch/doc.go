// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch runs the resilient send pipeline.
//
// A send appends the user's message to local history first, then walks the
// endpoint candidates with a timeout-bounded attempt each, and finishes with
// exactly one terminal assistant message: the backend's reply on success, or
// the canned offline fallback when every endpoint fails. Sending never
// returns a transport error to the caller; unreachable backends are a
// degraded answer, not a failure.
package dispatch
