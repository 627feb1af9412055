// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/minerva-ai/thinktank-cli/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

// searchSchemaVersion tracks the search database schema for migrations.
const searchSchemaVersion = 1

// SQLite schema for the message search index with FTS (Full Text Search).
// The index is derived data: it can be deleted and rebuilt from the
// conversation bodies at any time.
const searchSchema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Messages table: one row per indexed message
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL UNIQUE,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL  -- Unix millis
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

-- Full-text search virtual table over message content
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- Triggers to keep FTS table in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.id;
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.id;
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;
`

const searchInitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// =============================================================================
// SEARCH INDEX
// =============================================================================

// SearchIndex is a SQLite-backed full-text index over message content.
type SearchIndex struct {
	db *sql.DB
}

// SearchHit is a single search result with a highlighted snippet.
type SearchHit struct {
	ConversationID string
	MessageID      string
	Role           string
	Snippet        string
}

// OpenSearchIndex opens (or creates) the search database at path.
func OpenSearchIndex(path string) (*SearchIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search database: %w", err)
	}
	// A single writer; the store serializes access anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(searchSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create search schema: %w", err)
	}
	if _, err := db.Exec(searchInitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize search metadata: %w", err)
	}
	return &SearchIndex{db: db}, nil
}

// Close closes the underlying database.
func (si *SearchIndex) Close() error {
	return si.db.Close()
}

// Index adds a message to the index. Indexing is idempotent on message ID,
// matching the append semantics of the store.
func (si *SearchIndex) Index(conversationID string, msg *model.Message) error {
	_, err := si.db.Exec(
		`INSERT OR IGNORE INTO messages (message_id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, conversationID, string(msg.Role), msg.Content, msg.Timestamp.UnixMilli(),
	)
	return err
}

// RemoveConversation drops every indexed message of a conversation.
func (si *SearchIndex) RemoveConversation(conversationID string) error {
	_, err := si.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

// Search runs a full-text query and returns hits ordered by relevance.
func (si *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := si.db.Query(
		`SELECT m.conversation_id, m.message_id, m.role,
		        snippet(messages_fts, 0, '[', ']', '…', 12)
		 FROM messages_fts
		 JOIN messages m ON m.id = messages_fts.rowid
		 WHERE messages_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		ftsQuery(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ConversationID, &h.MessageID, &h.Role, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so user input can't inject FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
