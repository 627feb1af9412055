// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// thinktank.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.thinktank/config.toml
//   - ~/.thinktank/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/minerva-ai/thinktank-cli/internal/endpoint"
	"github.com/minerva-ai/thinktank-cli/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete thinktank configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Endpoints configuration
	Endpoints EndpointsConfig `toml:"endpoints" json:"endpoints"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Transport configuration
	Transport TransportConfig `toml:"transport" json:"transport"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// EndpointsConfig lists the backend candidates in fallback order.
type EndpointsConfig struct {
	// Candidates are tried in order on every send. The list always ends
	// with the in-process mock endpoint; see EnsureMockTail.
	Candidates []string `toml:"candidates" json:"candidates"`

	// AttemptTimeoutSecs bounds one endpoint attempt (default: 10).
	AttemptTimeoutSecs int `toml:"attempt_timeout_secs" json:"attempt_timeout_secs"`

	// NoNetwork forces local-only operation: no endpoint is dialed and
	// every send answers from the offline fallback.
	NoNetwork bool `toml:"no_network" json:"no_network"`
}

// StorageConfig controls the conversation store.
type StorageConfig struct {
	// DataDir is the storage directory (default: ~/.thinktank).
	DataDir string `toml:"data_dir" json:"data_dir"`

	// MaxConversations caps retained conversations (default: 100).
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`

	// MaxMessages caps retained messages per conversation (default: 500).
	MaxMessages int `toml:"max_messages" json:"max_messages"`

	// Encrypt enables at-rest encryption of conversation bodies. The
	// passphrase is never stored in this file; it comes from the
	// THINKTANK_PASSPHRASE environment variable.
	Encrypt bool `toml:"encrypt" json:"encrypt"`

	// DisableSearch skips the SQLite full-text index.
	DisableSearch bool `toml:"disable_search" json:"disable_search"`
}

// TransportConfig controls how exchanges reach the backend.
type TransportConfig struct {
	// DisableWebSocket skips the WebSocket transport and uses REST only.
	DisableWebSocket bool `toml:"disable_websocket" json:"disable_websocket"`

	// DisableStoreInMemory stops asking the backend to keep exchanges in
	// its own short-term memory. Requests carry store_in_memory=true
	// unless this is set.
	DisableStoreInMemory bool `toml:"disable_store_in_memory" json:"disable_store_in_memory"`
}

// UIConfig contains terminal rendering configuration.
type UIConfig struct {
	// Plain disables markdown rendering and color output.
	Plain bool `toml:"plain" json:"plain"`

	// Theme selects the markdown rendering style: "auto", "dark", "light".
	Theme string `toml:"theme" json:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// Default returns the built-in default configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	dataDir := ".thinktank"
	if err == nil {
		dataDir = filepath.Join(home, ".thinktank")
	}

	return &Config{
		Version: CurrentVersion,
		Endpoints: EndpointsConfig{
			Candidates: []string{
				"https://api.thinktank.minerva-ai.dev",
				"http://localhost:8080",
			},
			AttemptTimeoutSecs: 10,
		},
		Storage: StorageConfig{
			DataDir:          dataDir,
			MaxConversations: 100,
			MaxMessages:      500,
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the thinktank configuration directory (~/.thinktank).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".thinktank"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir creates the configuration directory if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration, trying TOML first, then JSON, then the
// built-in defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := ConfigPathTOML(); err == nil {
		if err := LoadTOML(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		} else if err == nil {
			cfg.fillDefaults()
			cfg.ApplyEnvOverrides()
			return cfg, cfg.Validate()
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if err := LoadJSON(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	return cfg, cfg.Validate()
}

// LoadTOML merges the TOML file at path into cfg.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid TOML config %s: %w", path, err)
	}
	return nil
}

// LoadJSON merges the JSON file at path into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid JSON config %s: %w", path, err)
	}
	return nil
}

// LoadFromPath loads a config file by extension (.toml or .json) without
// consulting the default locations.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = LoadTOML(cfg, path)
	case ".json":
		err = LoadJSON(cfg, path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	return cfg, cfg.Validate()
}

// fillDefaults replaces zero values with the built-in defaults.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Version == "" {
		c.Version = def.Version
	}
	if len(c.Endpoints.Candidates) == 0 {
		c.Endpoints.Candidates = def.Endpoints.Candidates
	}
	if c.Endpoints.AttemptTimeoutSecs <= 0 {
		c.Endpoints.AttemptTimeoutSecs = def.Endpoints.AttemptTimeoutSecs
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
	if c.Storage.MaxConversations <= 0 {
		c.Storage.MaxConversations = def.Storage.MaxConversations
	}
	if c.Storage.MaxMessages <= 0 {
		c.Storage.MaxMessages = def.Storage.MaxMessages
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies THINKTANK_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("THINKTANK_ENDPOINT"); v != "" {
		// A single override endpoint is prepended, keeping the rest of
		// the fallback chain intact.
		c.Endpoints.Candidates = append([]string{v}, c.Endpoints.Candidates...)
	}
	if v := os.Getenv("THINKTANK_NO_NETWORK"); v != "" {
		c.Endpoints.NoNetwork = envBool(v)
	}
	if v := os.Getenv("THINKTANK_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("THINKTANK_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Endpoints.AttemptTimeoutSecs = secs
		}
	}
	if v := os.Getenv("THINKTANK_PLAIN"); v != "" {
		c.UI.Plain = envBool(v)
	}
	if v := os.Getenv("THINKTANK_ENCRYPT"); v != "" {
		c.Storage.Encrypt = envBool(v)
	}
}

// Passphrase returns the at-rest encryption passphrase from the
// environment. Never persisted to the config file.
func Passphrase() string {
	return os.Getenv("THINKTANK_PASSPHRASE")
}

func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	for _, cand := range c.Endpoints.Candidates {
		if !endpoint.Valid(cand) {
			errs = append(errs, ValidationError{
				Field:   "endpoints.candidates",
				Message: "not an absolute http(s) URL: " + cand,
			})
		}
	}
	if c.Endpoints.AttemptTimeoutSecs < 1 || c.Endpoints.AttemptTimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "endpoints.attempt_timeout_secs",
			Message: "must be between 1 and 300",
		})
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: "must be auto, dark, or light",
		})
	}
	return errors.Join(errs...)
}

// EnsureMockTail appends mockURL as the final candidate unless it is
// already present. Every resolver walk is guaranteed to end at a reachable
// local backend.
func (c *Config) EnsureMockTail(mockURL string) {
	mockURL = endpoint.Normalize(mockURL)
	if mockURL == "" {
		return
	}
	for _, cand := range c.Endpoints.Candidates {
		if endpoint.Normalize(cand) == mockURL {
			return
		}
	}
	c.Endpoints.Candidates = append(c.Endpoints.Candidates, mockURL)
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the TOML path atomically.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML to path.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# thinktank configuration\n")
	buf.WriteString("# See https://github.com/minerva-ai/thinktank-cli for documentation.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents config corruption on crash
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first use.
// A load failure falls back to defaults so startup never blocks on a broken
// config file.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: using default config: %v\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})
	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
