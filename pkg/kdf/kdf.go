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

// Package kdf converts raw credential material into key-encryption
// keys using HKDF-SHA256 (RFC 5869) with an empty salt and a
// per-family info label. The label provides domain separation:
// identical raw bytes presented by two credential families never
// derive the same KEK.
//
// Derived keys are returned as opaque handles. The key bytes are never
// exposed through the public API; a KEK can only wrap and unwrap data
// encryption keys.
package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-credvault/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credvault/pkg/types"
	"golang.org/x/crypto/hkdf"
)

// Per-family HKDF info labels. Distinct labels per KEK source are the
// domain-separation boundary; never reuse a label across families.
const (
	infoPRF      = "credvault/kek/prf/v1"
	infoOpaque   = "credvault/kek/opaque/v1"
	infoWallet   = "credvault/kek/wallet/v1"
	infoRecovery = "credvault/kek/recovery/v1"
)

// KEK is a non-extractable key-encryption key handle. The key material
// is held in unexported state and is only reachable through Wrap and
// Unwrap; there is no accessor that returns the derived bytes.
type KEK struct {
	cipher    aead.Cipher
	source    types.KekSource
	algorithm string
	key       []byte
}

// DeriveKEK derives a KEK from raw credential material for the given
// family, using the algorithm selected for the current CPU. Use
// DeriveKEKWithAlgorithm when unwrapping data that records a specific
// algorithm.
func DeriveKEK(material []byte, source types.KekSource) (*KEK, error) {
	return DeriveKEKWithAlgorithm(material, source, aead.SelectOptimal())
}

// DeriveKEKWithAlgorithm derives a KEK bound to a specific AEAD
// algorithm. The same material and family always derive the same key
// bytes; the algorithm only controls the cipher the handle wraps with.
func DeriveKEKWithAlgorithm(material []byte, source types.KekSource, algorithm string) (*KEK, error) {
	if len(material) == 0 {
		return nil, ErrInvalidMaterial
	}

	info, err := infoLabel(source)
	if err != nil {
		return nil, err
	}

	// Empty salt per RFC 5869; the credential material is already
	// high-entropy (PRF output, OPAQUE export key, signature bytes).
	reader := hkdf.New(sha256.New, material, nil, []byte(info))
	key := make([]byte, aead.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("kdf: derivation failed: %w", err)
	}

	cipher, err := aead.New(algorithm, key)
	if err != nil {
		return nil, err
	}

	return &KEK{
		cipher:    cipher,
		source:    source,
		algorithm: algorithm,
		key:       key,
	}, nil
}

// Wrap encrypts a data-encryption key under this KEK, binding the
// additional authenticated data into the result.
func (k *KEK) Wrap(dek, additionalData []byte) (*types.EncryptedData, error) {
	if k.cipher == nil {
		return nil, ErrDestroyed
	}
	if len(dek) != aead.KeySize {
		return nil, fmt.Errorf("kdf: invalid DEK size: %d bytes (must be %d bytes)", len(dek), aead.KeySize)
	}
	return k.cipher.Encrypt(dek, additionalData)
}

// Unwrap decrypts a wrapped data-encryption key. Fails with
// aead.ErrIntegrity when the wrapped key was produced under a
// different KEK or the additional authenticated data does not match.
func (k *KEK) Unwrap(wrapped *types.EncryptedData, additionalData []byte) ([]byte, error) {
	if k.cipher == nil {
		return nil, ErrDestroyed
	}
	return k.cipher.Decrypt(wrapped, additionalData)
}

// Source returns the credential family this KEK was derived from.
func (k *KEK) Source() types.KekSource {
	return k.source
}

// Algorithm returns the AEAD algorithm this handle wraps with.
func (k *KEK) Algorithm() string {
	return k.algorithm
}

// Destroy zeroizes the derived key material. The handle is unusable
// afterwards; Wrap and Unwrap return ErrDestroyed.
func (k *KEK) Destroy() {
	for i := range k.key {
		k.key[i] = 0
	}
	k.key = nil
	k.cipher = nil
}

// infoLabel returns the HKDF info label for the credential family.
func infoLabel(source types.KekSource) (string, error) {
	switch source {
	case types.KekSourcePRF:
		return infoPRF, nil
	case types.KekSourceOpaque:
		return infoOpaque, nil
	case types.KekSourceWallet:
		return infoWallet, nil
	case types.KekSourceRecovery:
		return infoRecovery, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
}
