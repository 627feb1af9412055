// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline handles operation without a reachable backend.
//
// It provides two things: a process-wide no-network mode that keeps the
// dispatcher from attempting any remote exchange, and the canned fallback
// reply used whenever every endpoint fails. The fallback is a first-class
// response, not an error: a send always produces an assistant message, and
// the message records that it was produced locally.
//
// # Usage
//
//	// Force local-only operation (e.g. --no-network)
//	offline.SetEnabled(true)
//
//	// Validate an endpoint URL before dialing
//	if err := offline.ValidateEndpointURL(target); err != nil {
//		return err
//	}
//
//	// Produce the canned reply after endpoint exhaustion
//	reply := offline.Fallback(userInput)
package offline
