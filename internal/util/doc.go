// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helpers for the thinktank client: atomic
// file writes, rune- and width-aware string truncation, Unicode input
// normalization, and numeric formatting.
package util
