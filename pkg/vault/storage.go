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

package vault

import (
	"context"

	"github.com/jeremyhahn/go-credvault/pkg/envelope"
	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// SecretRecord is the server-visible description of a protected
// payload. The server stores only this record, the wrapper records,
// and the encrypted blob; it never sees plaintext, the DEK, or a KEK.
type SecretRecord struct {
	// SecretID is the random identifier assigned at creation.
	SecretID string `json:"secret_id"`

	// SecretType classifies the payload; one secret exists per type.
	SecretType types.SecretType `json:"secret_type"`

	// Format is the envelope serialization recorded at creation. It
	// must match on load or the operation fails closed.
	Format envelope.Format `json:"format"`

	// Algorithm is the AEAD algorithm the blob was encrypted with.
	Algorithm string `json:"algorithm"`

	// BlobHash is the SHA-256 hash of the encrypted blob, hex encoded.
	// Blobs are content-addressed by (SecretID, BlobHash).
	BlobHash string `json:"blob_hash"`

	// BlobSize is the encrypted blob size in bytes.
	BlobSize int64 `json:"blob_size"`

	// Metadata is opaque caller-supplied metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WrapperRecord is one DEK wrapping under one credential's KEK.
// Every wrapper of a secret unwraps to identical DEK bytes.
type WrapperRecord struct {
	// SecretID identifies the secret this wrapper belongs to.
	SecretID string `json:"secret_id"`

	// CredentialID is the stable credential identifier the wrapper is
	// bound to, also authenticated inside the wrap AAD.
	CredentialID string `json:"credential_id"`

	// WrappedDEK is the self-describing wrapped key record
	// {algorithm, nonce, ciphertext} serialized as a JSON string.
	WrappedDEK string `json:"wrapped_dek"`

	// KekSource is the credential family the wrapping KEK derives from.
	KekSource types.KekSource `json:"kek_source"`

	// PRFSalt is the per-secret PRF evaluation salt. Passkey wrappers only.
	PRFSalt []byte `json:"prf_salt,omitempty"`
}

// SecretBundle is a secret record together with all of its wrappers.
type SecretBundle struct {
	Secret   *SecretRecord    `json:"secret"`
	Wrappers []*WrapperRecord `json:"wrappers"`
}

// Storage is the external persistence collaborator. Implementations
// live server-side (or in pkg/storage/vaultstore for embedders and
// tests) and must treat AddWrapper as an idempotent upsert on
// (secretID, credentialID) so retries after transient failures are
// safe. Transient errors surface unmodified; the vault never retries
// cryptographic failures.
//
// No wrapper-removal operation is defined: a secret's wrapper set only
// grows.
type Storage interface {
	// StoreSecret persists a new secret record, its encrypted blob
	// reference, and exactly one initial wrapper.
	StoreSecret(ctx context.Context, secret *SecretRecord, wrapper *WrapperRecord) error

	// AddWrapper upserts a wrapper for an existing secret.
	AddWrapper(ctx context.Context, secretID string, wrapper *WrapperRecord) error

	// GetSecretBundle returns the secret of the given type with all
	// wrappers, or nil (with a nil error) when no secret of that type
	// is enrolled.
	GetSecretBundle(ctx context.Context, secretType types.SecretType) (*SecretBundle, error)

	// GetSecretByID returns the bundle for a specific secret, or nil
	// (with a nil error) when the secret is unknown.
	GetSecretByID(ctx context.Context, secretID string) (*SecretBundle, error)

	// PutBlob uploads a content-addressed encrypted blob.
	PutBlob(ctx context.Context, secretID, blobHash string, blob []byte) error

	// GetBlob downloads a content-addressed encrypted blob.
	GetBlob(ctx context.Context, secretID, blobHash string) ([]byte, error)
}
