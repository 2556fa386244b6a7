// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credvault.
//
// go-credvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package aead provides the authenticated-encryption engine for the
// vault: 256-bit keys, 96-bit random nonces, 128-bit authentication
// tags. Two algorithms are supported, AES-256-GCM and
// ChaCha20-Poly1305, selected automatically by CPU capability.
//
// Decryption fails closed: any mismatch in key, nonce, ciphertext, or
// additional authenticated data yields ErrIntegrity with no partial
// output. The error is deliberately undifferentiated between "tampered
// ciphertext" and "wrong key" to avoid giving callers an oracle.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-credvault/pkg/types"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the symmetric key size in bytes (256 bits).
	KeySize = 32

	// NonceSize is the nonce size in bytes (96 bits) for both supported algorithms.
	NonceSize = 12

	// Overhead is the authentication tag size in bytes (128 bits).
	Overhead = 16
)

// Cipher provides authenticated encryption with associated data.
// Implementations are safe for concurrent use.
type Cipher interface {
	// Encrypt encrypts plaintext with a fresh random nonce, binding
	// additionalData into the authentication tag without encrypting it.
	Encrypt(plaintext, additionalData []byte) (*types.EncryptedData, error)

	// Decrypt verifies the authentication tag and decrypts. Returns
	// ErrIntegrity if the key, nonce, ciphertext, or additional data
	// do not match what was used during encryption.
	Decrypt(data *types.EncryptedData, additionalData []byte) ([]byte, error)

	// Algorithm returns the algorithm name recorded in EncryptedData.
	Algorithm() string

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// engine implements Cipher for any 12-byte-nonce cipher.AEAD.
type engine struct {
	aead      cipher.AEAD
	algorithm string
}

// New creates a Cipher for the named algorithm with the given 32-byte key.
func New(algorithm string, key []byte) (Cipher, error) {
	switch algorithm {
	case AES256GCM:
		return NewAESGCM(key)
	case ChaCha20Poly1305:
		return NewChaCha20Poly1305(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// NewAESGCM creates an AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKeySize, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &engine{aead: gcm, algorithm: AES256GCM}, nil
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher. The key must
// be exactly 32 bytes.
func NewChaCha20Poly1305(key []byte) (Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKeySize, len(key), chacha20poly1305.KeySize)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &engine{aead: aead, algorithm: ChaCha20Poly1305}, nil
}

// GenerateKey generates a random 256-bit symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Encrypt encrypts plaintext with a fresh random nonce.
func (e *engine) Encrypt(plaintext, additionalData []byte) (*types.EncryptedData, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the 16-byte authentication tag to the ciphertext
	ciphertext := e.aead.Seal(nil, nonce, plaintext, additionalData)

	return &types.EncryptedData{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Algorithm:  e.algorithm,
	}, nil
}

// Decrypt verifies the authentication tag and decrypts.
func (e *engine) Decrypt(data *types.EncryptedData, additionalData []byte) ([]byte, error) {
	if data == nil {
		return nil, ErrIntegrity
	}
	if data.Algorithm != "" && data.Algorithm != e.algorithm {
		return nil, fmt.Errorf("%w: data encrypted with %q, cipher is %q",
			ErrAlgorithmMismatch, data.Algorithm, e.algorithm)
	}
	if len(data.Nonce) != e.aead.NonceSize() {
		return nil, ErrIntegrity
	}

	plaintext, err := e.aead.Open(nil, data.Nonce, data.Ciphertext, additionalData)
	if err != nil {
		// Deliberately undifferentiated: wrong key and tampered
		// ciphertext are indistinguishable to the caller.
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// Algorithm returns the algorithm name.
func (e *engine) Algorithm() string {
	return e.algorithm
}

// NonceSize returns the nonce size in bytes (12 for both algorithms).
func (e *engine) NonceSize() int {
	return e.aead.NonceSize()
}

// Overhead returns the authentication tag size in bytes (16 for both algorithms).
func (e *engine) Overhead() int {
	return e.aead.Overhead()
}
