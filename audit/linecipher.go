// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// lineCipherSalt binds derived keys to the audit file store use case.
	lineCipherSalt = "auditrail-file-store"

	// lineCipherInfo is the HKDF info parameter for key derivation.
	lineCipherInfo = "line-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when encryption is requested without a key secret.
	ErrEmptySecret = errors.New("encryption secret cannot be empty")

	// ErrDecryptFailed is returned for tampered or undecodable records.
	ErrDecryptFailed = errors.New("decryption failed: invalid record or authentication tag")

	// ErrRecordTooShort is returned for records shorter than nonce plus tag.
	ErrRecordTooShort = errors.New("encrypted record too short")
)

// lineCipher seals and opens individual serialized event records with
// AES-256-GCM, one nonce per record, so a corrupted or truncated line
// never blocks decoding of the others. The key is derived from an
// externally supplied secret using HKDF-SHA256; the store never
// generates its own key, since a key that lives only in one process
// cannot decrypt the log after a restart.
type lineCipher struct {
	aead cipher.AEAD
}

// newLineCipher derives a 256-bit AES key from the supplied secret and
// returns a cipher ready for per-record sealing.
func newLineCipher(secret string) (*lineCipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key, err := deriveLineKey(secret)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &lineCipher{aead: gcm}, nil
}

// Seal encrypts one record and returns base64(nonce || ciphertext || tag),
// safe to write as a single log line.
func (c *lineCipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts one record produced by Seal.
func (c *lineCipher) Open(record string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, err.Error())
	}

	if len(data) < gcmNonceSize+c.aead.Overhead() {
		return nil, ErrRecordTooShort
	}

	nonce := data[:gcmNonceSize]
	plaintext, err := c.aead.Open(nil, nonce, data[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// deriveLineKey derives the AES key from the secret using HKDF-SHA256.
func deriveLineKey(secret string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(secret), []byte(lineCipherSalt), []byte(lineCipherInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("read HKDF output: %w", err)
	}
	return key, nil
}
