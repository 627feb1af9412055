// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the thinktank command-line interface.
//
// Commands:
//
//	chat        interactive REPL (default)
//	ask         one-shot question, answer on stdout
//	sessions    list, open, delete, search, export conversations
//	serve-mock  run the mock backend standalone
//	version     print version information
//
// Output adapts to the environment: markdown rendering and color only when
// stdout is a terminal, plain text when piped or when --plain is set.
package cli
