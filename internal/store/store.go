// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minerva-ai/thinktank-cli/internal/model"
	"github.com/minerva-ai/thinktank-cli/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	indexFile    = "conversations_index.json"
	activeFile   = "active_conversation"
	endpointFile = "api_endpoint"
	searchDBFile = "search.db"
	saltFile     = "encryption_salt"
	convPrefix   = "conversation_"
	convSuffix   = ".json"
)

// DefaultMaxConversations bounds how many conversations are retained before
// the least-recently-updated ones are evicted.
const DefaultMaxConversations = 100

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist or
// its stored body is unreadable. Use errors.Is to check for it.
var ErrConversationNotFound = &StoreError{Message: "conversation not found"}

// StoreError represents a store-related error with errors.Is support.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations under a base directory and mirrors everything
// in memory. The mirror is the read path while healthy and becomes the sole
// store once persistence has degraded.
type Store struct {
	mu sync.Mutex

	// BaseDir is the storage directory (set at construction).
	BaseDir string

	// MaxConversations limits retained conversations (0 = default).
	MaxConversations int

	// MaxMessages limits retained messages per conversation (0 = model default).
	MaxMessages int

	cipher *Cipher
	search *SearchIndex

	memOnly bool
	mem     map[string]*model.Conversation
	index   map[string]model.Meta
	active  string
	sticky  string
}

// Options configures optional store features.
type Options struct {
	// MaxConversations overrides the retention cap (0 = default).
	MaxConversations int

	// MaxMessages overrides the per-conversation message cap (0 = model default).
	MaxMessages int

	// Passphrase enables at-rest encryption of conversation bodies.
	Passphrase string

	// DisableSearch skips opening the SQLite search index.
	DisableSearch bool
}

// New opens (or creates) a store rooted at baseDir. It never fails: if the
// directory cannot be prepared or existing state cannot be read, the store
// starts memory-only and logs the reason.
func New(baseDir string, opts Options) *Store {
	s := &Store{
		BaseDir:          baseDir,
		MaxConversations: opts.MaxConversations,
		MaxMessages:      opts.MaxMessages,
		mem:              make(map[string]*model.Conversation),
		index:            make(map[string]model.Meta),
	}
	if s.MaxConversations <= 0 {
		s.MaxConversations = DefaultMaxConversations
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		s.degrade(err)
		return s
	}

	if opts.Passphrase != "" {
		cipher, err := s.openCipher(opts.Passphrase)
		if err != nil {
			// Without a working cipher nothing readable could be persisted.
			s.degrade(err)
		} else {
			s.cipher = cipher
		}
	}

	if !opts.DisableSearch && !s.memOnly {
		search, err := OpenSearchIndex(filepath.Join(baseDir, searchDBFile))
		if err != nil {
			// Search is derived data; losing it only degrades /search.
			log.Printf("store: search index unavailable: %v", err)
		} else {
			s.search = search
		}
	}

	s.loadIndex()
	s.loadActive()
	s.loadSticky()
	return s
}

// Close releases the search index handle, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.search != nil {
		err := s.search.Close()
		s.search = nil
		return err
	}
	return nil
}

// MemoryOnly reports whether persistence has degraded for this session.
func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memOnly
}

// degrade flips the store to memory-only operation. Called with or without
// the lock held is fine; it only ever sets a boolean and logs once.
func (s *Store) degrade(err error) {
	if !s.memOnly {
		s.memOnly = true
		log.Printf("store: persistence degraded to memory-only: %v", err)
	}
}

// =============================================================================
// CREATE / APPEND
// =============================================================================

// Create allocates a new conversation seeded with the welcome entry,
// persists it, and returns a copy. It never fails; persistence errors
// degrade the store but the conversation remains usable in memory.
//
// The new conversation becomes active when no active conversation exists.
func (s *Store) Create(title string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(title)
	conv.MaxMessages = s.MaxMessages
	s.mem[conv.ID] = conv
	s.persistLocked(conv)
	if s.active == "" {
		s.setActiveLocked(conv.ID)
	}
	s.enforceLimitLocked()
	return conv.Clone()
}

// Append adds a message to the target conversation, creating the
// conversation if the id is unknown. The append is idempotent on message ID;
// the returned bool reports whether the message was actually added. Like
// Load, the returned conversation is a copy.
//
// Append is an atomic read-modify-write of the conversation keyed by id, so
// two rapid sends cannot interleave partial updates.
func (s *Store) Append(conversationID string, msg *model.Message) (*model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreateLocked(conversationID)
	added := conv.Append(msg)
	if added {
		s.persistLocked(conv)
		if s.search != nil && msg.Role != model.RoleSystem {
			if err := s.search.Index(conv.ID, msg); err != nil {
				log.Printf("store: search indexing failed: %v", err)
			}
		}
		s.enforceLimitLocked()
	}
	return conv.Clone(), added
}

// MarkSynced flips the synced flag on a stored message and re-persists.
func (s *Store) MarkSynced(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadLocked(conversationID)
	if err != nil {
		return false
	}
	if !conv.MarkSynced(messageID) {
		return false
	}
	s.persistLocked(conv)
	return true
}

// SetTitle renames a conversation and latches the title against
// auto-derivation.
func (s *Store) SetTitle(conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadLocked(conversationID)
	if err != nil {
		return err
	}
	conv.SetTitle(title)
	s.persistLocked(conv)
	return nil
}

// getOrCreateLocked returns the conversation for id, materializing a fresh
// seeded conversation when the id is unknown (or generating one for "").
func (s *Store) getOrCreateLocked(id string) *model.Conversation {
	if id != "" {
		if conv, err := s.loadLocked(id); err == nil {
			return conv
		}
	}

	conv := model.NewConversation("")
	conv.MaxMessages = s.MaxMessages
	if id != "" {
		conv.ID = id
	}
	s.mem[conv.ID] = conv
	if s.active == "" {
		s.setActiveLocked(conv.ID)
	}
	return conv
}

// =============================================================================
// LOAD / LIST
// =============================================================================

// Load returns a deep copy of the stored conversation, or
// ErrConversationNotFound. Malformed stored data is treated as not-found
// and logged, never propagated as a parse error.
func (s *Store) Load(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadLocked(id)
	if err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

// loadLocked returns the live conversation object for id, reading through
// to disk on a memory miss.
func (s *Store) loadLocked(id string) (*model.Conversation, error) {
	if id == "" {
		return nil, ErrConversationNotFound
	}
	if conv, ok := s.mem[id]; ok {
		return conv, nil
	}
	if s.memOnly {
		return nil, ErrConversationNotFound
	}

	data, err := os.ReadFile(s.convPath(id))
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if s.cipher != nil && Encrypted(data) {
		data, err = s.cipher.Open(data)
		if err != nil {
			log.Printf("store: cannot decrypt conversation %s: %v", id, err)
			return nil, ErrConversationNotFound
		}
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		log.Printf("store: corrupt conversation body %s: %v", id, err)
		return nil, ErrConversationNotFound
	}
	conv.MaxMessages = s.MaxMessages
	s.mem[conv.ID] = &conv
	return &conv, nil
}

// List returns conversation metadata, newest-updated first. It is derived
// from the index alone and never loads conversation bodies.
func (s *Store) List() []model.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	metas := make([]model.Meta, 0, len(s.index))
	for _, meta := range s.index {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas
}

// =============================================================================
// SEARCH
// =============================================================================

// Search finds messages containing the query. It uses the full-text index
// when available and falls back to a linear scan over in-memory and indexed
// conversations otherwise.
func (s *Store) Search(query string, limit int) []SearchHit {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.search != nil {
		hits, err := s.search.Search(query, limit)
		if err == nil {
			return hits
		}
		log.Printf("store: search index query failed, scanning instead: %v", err)
	}
	return s.scanSearchLocked(query, limit)
}

// scanSearchLocked is the indexless fallback: case-insensitive substring
// match over every loadable conversation.
func (s *Store) scanSearchLocked(query string, limit int) []SearchHit {
	needle := strings.ToLower(query)

	ids := make([]string, 0, len(s.index)+len(s.mem))
	seen := make(map[string]bool, len(s.index)+len(s.mem))
	for id := range s.index {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range s.mem {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var hits []SearchHit
	for _, id := range ids {
		conv, err := s.loadLocked(id)
		if err != nil {
			continue
		}
		for _, msg := range conv.Messages {
			if msg.Role == model.RoleSystem {
				continue
			}
			if strings.Contains(strings.ToLower(msg.Content), needle) {
				hits = append(hits, SearchHit{
					ConversationID: conv.ID,
					MessageID:      msg.ID,
					Role:           string(msg.Role),
					Snippet:        msg.Preview(80),
				})
				if len(hits) >= limit {
					return hits
				}
			}
		}
	}
	return hits
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a conversation body and its index entry. If it was the
// active conversation, the active pointer is cleared; the next send must
// create or select a conversation before proceeding.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	_, inMem := s.mem[id]
	_, inIndex := s.index[id]
	onDisk := false
	if !s.memOnly {
		if _, err := os.Stat(s.convPath(id)); err == nil {
			onDisk = true
		}
	}
	if !inMem && !inIndex && !onDisk {
		return ErrConversationNotFound
	}

	delete(s.mem, id)
	delete(s.index, id)
	if !s.memOnly {
		os.Remove(s.convPath(id))
		s.persistIndexLocked()
	}
	if s.search != nil {
		if err := s.search.RemoveConversation(id); err != nil {
			log.Printf("store: search de-indexing failed: %v", err)
		}
	}

	if s.active == id {
		s.setActiveLocked("")
	}
	return nil
}

// enforceLimitLocked evicts the least-recently-updated conversations when
// the retention cap is exceeded.
func (s *Store) enforceLimitLocked() {
	if len(s.index) <= s.MaxConversations {
		return
	}

	metas := make([]model.Meta, 0, len(s.index))
	for _, meta := range s.index {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})

	excess := len(metas) - s.MaxConversations
	for i := 0; i < excess; i++ {
		s.deleteLocked(metas[i].ID)
	}
}

// =============================================================================
// ACTIVE CONVERSATION
// =============================================================================

// SetActive marks the conversation that receives new messages by default.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadLocked(id); err != nil {
		return err
	}
	s.setActiveLocked(id)
	return nil
}

// ActiveID returns the active conversation id, falling back to the most
// recently updated conversation. Returns "" when the store is empty.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() string {
	if s.active != "" {
		if _, ok := s.index[s.active]; ok {
			return s.active
		}
		if _, ok := s.mem[s.active]; ok {
			return s.active
		}
		s.active = ""
	}

	var newest string
	var newestAt time.Time
	for id, meta := range s.index {
		if meta.UpdatedAt.After(newestAt) {
			newest, newestAt = id, meta.UpdatedAt
		}
	}
	if newest != "" {
		s.setActiveLocked(newest)
	}
	return newest
}

// EnsureActive returns the active conversation id, creating a fresh
// conversation when none exists.
func (s *Store) EnsureActive() string {
	s.mu.Lock()
	if id := s.activeLocked(); id != "" {
		s.mu.Unlock()
		return id
	}
	s.mu.Unlock()

	conv := s.Create("")
	s.mu.Lock()
	s.setActiveLocked(conv.ID)
	s.mu.Unlock()
	return conv.ID
}

func (s *Store) setActiveLocked(id string) {
	s.active = id
	if s.memOnly {
		return
	}
	path := filepath.Join(s.BaseDir, activeFile)
	var err error
	if id == "" {
		err = os.Remove(path)
		if os.IsNotExist(err) {
			err = nil
		}
	} else {
		err = util.AtomicWriteFile(path, []byte(id), 0644)
	}
	if err != nil {
		s.degrade(err)
	}
}

// =============================================================================
// STICKY ENDPOINT
// =============================================================================

// StickyEndpoint returns the persisted endpoint-resolver choice, or "".
func (s *Store) StickyEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sticky
}

// SetStickyEndpoint persists url as the preferred endpoint for future
// sessions. An empty url clears the stickiness.
func (s *Store) SetStickyEndpoint(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sticky = url
	if s.memOnly {
		return nil
	}
	path := filepath.Join(s.BaseDir, endpointFile)
	if url == "" {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := util.AtomicWriteFile(path, []byte(url), 0644); err != nil {
		s.degrade(err)
		return err
	}
	return nil
}

// =============================================================================
// PERSISTENCE INTERNALS
// =============================================================================

func (s *Store) convPath(id string) string {
	return filepath.Join(s.BaseDir, convPrefix+id+convSuffix)
}

// persistLocked writes the conversation body and refreshes its index entry.
// Failures degrade the store rather than surfacing to callers.
func (s *Store) persistLocked(conv *model.Conversation) {
	s.index[conv.ID] = conv.Meta()

	if s.memOnly {
		return
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		s.degrade(err)
		return
	}
	if s.cipher != nil {
		data, err = s.cipher.Seal(data)
		if err != nil {
			s.degrade(err)
			return
		}
	}
	if err := util.AtomicWriteFile(s.convPath(conv.ID), data, 0644); err != nil {
		s.degrade(err)
		return
	}
	s.persistIndexLocked()
}

func (s *Store) persistIndexLocked() {
	if s.memOnly {
		return
	}
	metas := make([]model.Meta, 0, len(s.index))
	for _, meta := range s.index {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		s.degrade(err)
		return
	}
	if err := util.AtomicWriteFile(filepath.Join(s.BaseDir, indexFile), data, 0644); err != nil {
		s.degrade(err)
	}
}

// loadIndex reads the listing index. Corrupt entries are discarded; the
// index is derived data and rebuilds as conversations are touched.
func (s *Store) loadIndex() {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, indexFile))
	if err != nil {
		return
	}
	var metas []model.Meta
	if err := json.Unmarshal(data, &metas); err != nil {
		log.Printf("store: corrupt conversation index, starting empty: %v", err)
		return
	}
	for _, meta := range metas {
		if meta.ID != "" {
			s.index[meta.ID] = meta
		}
	}
}

func (s *Store) loadActive() {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, activeFile))
	if err != nil {
		return
	}
	s.active = strings.TrimSpace(string(data))
}

func (s *Store) loadSticky() {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, endpointFile))
	if err != nil {
		return
	}
	s.sticky = strings.TrimSpace(string(data))
}
