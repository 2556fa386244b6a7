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

// Package commitment implements a salted-hash commitment to a wallet
// address. A relying party holding the commitment can confirm that a
// presented address is the committed one without learning the address
// beforehand, and the per-user salt prevents rainbow-table reversal.
//
// This is a sibling primitive used by an identity-binding consumer;
// it is not on the vault unlock path.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// SaltSize is the required commitment salt size in bytes.
const SaltSize = 32

var (
	// ErrInvalidAddress indicates an empty address after normalization.
	ErrInvalidAddress = errors.New("commitment: invalid address")

	// ErrInvalidSalt indicates a salt of the wrong size.
	ErrInvalidSalt = errors.New("commitment: invalid salt")
)

// GenerateSalt generates a cryptographically secure per-user salt.
// The salt must be stored with the commitment; deleting it effectively
// forgets the committed address.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("commitment: failed to generate salt: %w", err)
	}
	return salt, nil
}

// NormalizeAddress canonicalizes a wallet address for hashing: trims
// whitespace, strips an optional 0x prefix, and lowercases. This makes
// "ABCD", "0xabcd" and "abcd" commit identically.
func NormalizeAddress(address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	return strings.TrimPrefix(addr, "0x")
}

// Commit returns the salted SHA-256 commitment to the address.
// The same address and salt always produce the same commitment.
func Commit(address string, salt []byte) ([]byte, error) {
	normalized := NormalizeAddress(address)
	if normalized == "" {
		return nil, ErrInvalidAddress
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidSalt, len(salt), SaltSize)
	}

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write(salt)
	return h.Sum(nil), nil
}

// Verify reports whether the commitment matches the address and salt.
// The comparison is constant time; a malformed address, salt, or
// commitment verifies as false rather than returning an error.
func Verify(address string, salt, expected []byte) bool {
	actual, err := Commit(address, salt)
	if err != nil {
		return false
	}
	if len(actual) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(actual, expected) == 1
}
