// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mock implements a minimal in-process Think Tank backend.
//
// The mock serves the same /api/chat contract as a real backend and is
// appended as the final endpoint candidate, so the fallback walk always
// has a reachable last resort during development. It can also run
// standalone via the serve-mock command.
package mock
