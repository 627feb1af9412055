// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/minerva-ai/thinktank-cli/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// sealedMagic marks a conversation body as encrypted.
// Sealed format: magic || nonce || ciphertext+tag.
var sealedMagic = []byte("TTENC1")

// NonceSize is the AES-GCM nonce size (12 bytes / 96 bits).
const NonceSize = 12

// KeySize is the AES-256 key size (32 bytes / 256 bits).
const KeySize = 32

// SaltSize is the key-derivation salt size (32 bytes).
const SaltSize = 32

// PBKDF2Iterations for PBKDF2-SHA-256 key derivation.
// OWASP 2023 recommends 600,000+ iterations against modern hardware.
const PBKDF2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the sealed format is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates a wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// CIPHER
// =============================================================================

// Cipher seals and opens conversation bodies with AES-256-GCM. The key is
// derived from a passphrase via PBKDF2-SHA-256 with a store-level salt.
type Cipher struct {
	aead cipher.AEAD
}

// openCipher derives the store cipher from the passphrase, creating the
// salt file on first use.
func (s *Store) openCipher(passphrase string) (*Cipher, error) {
	saltPath := filepath.Join(s.BaseDir, saltFile)
	salt, err := os.ReadFile(saltPath)
	if err != nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := util.AtomicWriteFile(saltPath, salt, 0600); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
	}
	return NewCipher(passphrase, salt)
}

// NewCipher derives an AES-256-GCM cipher from passphrase and salt.
func NewCipher(passphrase string, salt []byte) (*Cipher, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
	// SECURITY: Zero key material to prevent memory disclosure.
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns magic || nonce || ciphertext+tag.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+NonceSize+len(plaintext)+c.aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts data previously produced by Seal.
func (c *Cipher) Open(data []byte) ([]byte, error) {
	if !Encrypted(data) {
		return nil, ErrInvalidCiphertext
	}
	data = data[len(sealedMagic):]
	if len(data) < NonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:NonceSize], data[NonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Encrypted reports whether data carries the sealed-format magic.
func Encrypted(data []byte) bool {
	if len(data) < len(sealedMagic) {
		return false
	}
	for i, b := range sealedMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}
