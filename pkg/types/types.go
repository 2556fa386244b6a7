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

// Package types defines the shared data model for the vault: secret
// classification, KEK source families, and the encrypted-data record
// produced by the AEAD engine.
package types

// SecretType classifies a protected payload. Exactly one secret of each
// type exists per user; the type is the lookup key for unlock.
type SecretType string

const (
	// SecretTypeFheKeyMaterial is client-side homomorphic encryption key material.
	SecretTypeFheKeyMaterial SecretType = "fhe-key-material"

	// SecretTypeProfile is an encrypted user profile document.
	SecretTypeProfile SecretType = "profile"
)

// String returns the string representation of the secret type
func (s SecretType) String() string {
	return string(s)
}

// KekSource identifies the credential family a key-encryption key is
// derived from. The source participates in KDF domain separation, so
// identical raw material from two families never yields the same KEK.
type KekSource string

const (
	// KekSourcePRF derives the KEK from a WebAuthn PRF (hmac-secret) output.
	KekSourcePRF KekSource = "prf"

	// KekSourceOpaque derives the KEK from an OPAQUE export key.
	KekSourceOpaque KekSource = "opaque"

	// KekSourceWallet derives the KEK from a deterministic wallet signature.
	KekSourceWallet KekSource = "wallet"

	// KekSourceRecovery derives the KEK from a recovery code.
	KekSourceRecovery KekSource = "recovery"
)

// String returns the string representation of the KEK source
func (k KekSource) String() string {
	return string(k)
}

// Valid reports whether the KEK source is a known credential family.
func (k KekSource) Valid() bool {
	switch k {
	case KekSourcePRF, KekSourceOpaque, KekSourceWallet, KekSourceRecovery:
		return true
	default:
		return false
	}
}

// UnlockPriority returns the fixed unlock ordering for the family.
// Lower values are attempted first: prf, opaque, wallet, recovery.
func (k KekSource) UnlockPriority() int {
	switch k {
	case KekSourcePRF:
		return 0
	case KekSourceOpaque:
		return 1
	case KekSourceWallet:
		return 2
	case KekSourceRecovery:
		return 3
	default:
		return int(^uint(0) >> 1)
	}
}

// EncryptedData represents the result of an AEAD encryption operation.
type EncryptedData struct {
	// Ciphertext is the encrypted data with the 16-byte authentication
	// tag appended, as produced by cipher.AEAD.Seal.
	Ciphertext []byte

	// Nonce is the 96-bit nonce used for encryption. It must be stored
	// with the ciphertext and presented unmodified on decryption.
	Nonce []byte

	// Algorithm identifies the AEAD algorithm used (e.g. "aes256-gcm",
	// "chacha20-poly1305") so decryption selects the matching cipher.
	Algorithm string
}
