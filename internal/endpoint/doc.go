// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package endpoint selects which backend URL a send attempt targets.
//
// The resolver walks an ordered candidate list. Selection is sticky: the
// last URL that produced a successful exchange is persisted and tried first
// on later sends and later sessions. The final candidate is expected to be
// a local mock endpoint, so walking the list can always terminate at a
// reachable backend during development.
package endpoint
