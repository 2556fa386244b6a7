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

package aead

import "errors"

var (
	// ErrIntegrity is returned when authentication fails during decryption.
	// It covers tampered ciphertext, a wrong key, a wrong nonce, and
	// mismatched additional authenticated data without distinguishing
	// between them, so callers cannot be used as a padding/tag oracle.
	ErrIntegrity = errors.New("aead: message authentication failed")

	// ErrInvalidKeySize is returned when the key is not 32 bytes.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrUnsupportedAlgorithm is returned for unknown algorithm names.
	ErrUnsupportedAlgorithm = errors.New("aead: unsupported algorithm")

	// ErrAlgorithmMismatch is returned when EncryptedData records a
	// different algorithm than the cipher asked to decrypt it.
	ErrAlgorithmMismatch = errors.New("aead: algorithm mismatch")
)
