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

// Package vaultstore implements vault.Storage on top of a generic
// storage.Backend, giving embedders and tests a working persistence
// layer over any backend (in-memory, file, or a custom adapter).
//
// Key layout:
//
//	secrets/id/<secretID>            secret record (JSON)
//	secrets/type/<secretType>        type index -> secretID
//	wrappers/<secretID>/<credKey>    wrapper record (JSON)
//	blobs/<secretID>/<blobHash>      encrypted blob (raw bytes)
//
// Credential IDs may contain separators, so wrapper keys use the
// base64url encoding of the credential ID.
package vaultstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-credvault/pkg/storage"
	"github.com/jeremyhahn/go-credvault/pkg/types"
	"github.com/jeremyhahn/go-credvault/pkg/vault"
)

// Store implements vault.Storage over a storage.Backend.
type Store struct {
	backend storage.Backend
}

// New creates a vault store over the given backend.
func New(backend storage.Backend) (*Store, error) {
	if backend == nil {
		return nil, errors.New("vaultstore: backend is required")
	}
	return &Store{backend: backend}, nil
}

// StoreSecret persists a new secret record, its type index, and the
// initial wrapper. At most one secret exists per type; storing a second
// secret of the same type returns storage.ErrAlreadyExists.
func (s *Store) StoreSecret(ctx context.Context, secret *vault.SecretRecord, wrapper *vault.WrapperRecord) error {
	if secret == nil || secret.SecretID == "" {
		return storage.ErrInvalidData
	}
	if wrapper == nil || wrapper.CredentialID == "" {
		return storage.ErrInvalidData
	}

	typeKey := secretTypeKey(secret.SecretType)
	exists, err := s.backend.Exists(typeKey)
	if err != nil {
		return fmt.Errorf("vaultstore: type index lookup failed: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: secret type %q", storage.ErrAlreadyExists, secret.SecretType)
	}

	record, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("vaultstore: failed to encode secret record: %w", err)
	}

	if err := s.backend.Put(secretIDKey(secret.SecretID), record, nil); err != nil {
		return fmt.Errorf("vaultstore: failed to store secret record: %w", err)
	}
	if err := s.backend.Put(typeKey, []byte(secret.SecretID), nil); err != nil {
		return fmt.Errorf("vaultstore: failed to store type index: %w", err)
	}
	return s.putWrapper(secret.SecretID, wrapper)
}

// AddWrapper upserts a wrapper for an existing secret. Writing the same
// (secretID, credentialID) pair twice overwrites, so retries are safe.
func (s *Store) AddWrapper(ctx context.Context, secretID string, wrapper *vault.WrapperRecord) error {
	if wrapper == nil || wrapper.CredentialID == "" {
		return storage.ErrInvalidData
	}

	exists, err := s.backend.Exists(secretIDKey(secretID))
	if err != nil {
		return fmt.Errorf("vaultstore: secret lookup failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: secret %q", storage.ErrNotFound, secretID)
	}

	return s.putWrapper(secretID, wrapper)
}

// GetSecretBundle returns the secret of the given type with all of its
// wrappers, or nil when no secret of that type is enrolled.
func (s *Store) GetSecretBundle(ctx context.Context, secretType types.SecretType) (*vault.SecretBundle, error) {
	secretID, err := s.backend.Get(secretTypeKey(secretType))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vaultstore: type index lookup failed: %w", err)
	}
	return s.GetSecretByID(ctx, string(secretID))
}

// GetSecretByID returns the bundle for a specific secret, or nil when
// the secret is unknown.
func (s *Store) GetSecretByID(ctx context.Context, secretID string) (*vault.SecretBundle, error) {
	data, err := s.backend.Get(secretIDKey(secretID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vaultstore: secret lookup failed: %w", err)
	}

	var secret vault.SecretRecord
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("%w: secret record: %v", storage.ErrInvalidData, err)
	}

	keys, err := s.backend.List(wrapperPrefix(secretID))
	if err != nil {
		return nil, fmt.Errorf("vaultstore: wrapper listing failed: %w", err)
	}

	wrappers := make([]*vault.WrapperRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.backend.Get(key)
		if err != nil {
			return nil, fmt.Errorf("vaultstore: wrapper read failed: %w", err)
		}
		var wrapper vault.WrapperRecord
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: wrapper record: %v", storage.ErrInvalidData, err)
		}
		wrappers = append(wrappers, &wrapper)
	}

	return &vault.SecretBundle{
		Secret:   &secret,
		Wrappers: wrappers,
	}, nil
}

// PutBlob uploads a content-addressed encrypted blob.
func (s *Store) PutBlob(ctx context.Context, secretID, blobHash string, blob []byte) error {
	if secretID == "" || blobHash == "" {
		return storage.ErrInvalidID
	}
	if err := s.backend.Put(blobKey(secretID, blobHash), blob, nil); err != nil {
		return fmt.Errorf("vaultstore: blob write failed: %w", err)
	}
	return nil
}

// GetBlob downloads a content-addressed encrypted blob.
func (s *Store) GetBlob(ctx context.Context, secretID, blobHash string) ([]byte, error) {
	blob, err := s.backend.Get(blobKey(secretID, blobHash))
	if err != nil {
		return nil, fmt.Errorf("vaultstore: blob read failed: %w", err)
	}
	return blob, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) putWrapper(secretID string, wrapper *vault.WrapperRecord) error {
	record, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("vaultstore: failed to encode wrapper record: %w", err)
	}
	if err := s.backend.Put(wrapperKey(secretID, wrapper.CredentialID), record, nil); err != nil {
		return fmt.Errorf("vaultstore: failed to store wrapper: %w", err)
	}
	return nil
}

func secretIDKey(secretID string) string {
	return "secrets/id/" + secretID
}

func secretTypeKey(secretType types.SecretType) string {
	return "secrets/type/" + secretType.String()
}

func wrapperPrefix(secretID string) string {
	return "wrappers/" + secretID + "/"
}

func wrapperKey(secretID, credentialID string) string {
	return wrapperPrefix(secretID) + base64.RawURLEncoding.EncodeToString([]byte(credentialID))
}

func blobKey(secretID, blobHash string) string {
	return "blobs/" + secretID + "/" + blobHash
}
