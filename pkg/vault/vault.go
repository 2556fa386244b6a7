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

// Package vault orchestrates envelope encryption across heterogeneous
// credentials. A secret is encrypted exactly once at creation with a
// freshly generated DEK; the DEK is wrapped per credential so any
// enrolled credential can unlock it. Adding a credential never
// re-encrypts the secret and never mints a new DEK: an existing
// wrapper is unwrapped and the same DEK is re-wrapped, which is what
// keeps every wrapper of a secret consistent.
//
// Unlock tries wrappers in fixed priority order (passkey, OPAQUE,
// wallet, recovery) and short-circuits on the first success.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-credvault/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credvault/pkg/credential"
	"github.com/jeremyhahn/go-credvault/pkg/crypto/aad"
	"github.com/jeremyhahn/go-credvault/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credvault/pkg/envelope"
	"github.com/jeremyhahn/go-credvault/pkg/kdf"
	"github.com/jeremyhahn/go-credvault/pkg/metrics"
	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// AAD context labels. The leading Encode part namespaces the AAD so a
// blob ciphertext can never be replayed as a wrapper or vice versa.
const (
	aadContextBlob = "blob"
	aadContextWrap = "wrap"
)

// prfSaltSize is the per-secret PRF evaluation salt size in bytes.
const prfSaltSize = 32

// Vault drives the envelope-encryption flow for one user. All
// operations are blocking and context-aware. Safe for concurrent use.
type Vault struct {
	storage   Storage
	logger    logger.Logger
	userID    string
	algorithm string
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the structured logger. Defaults to a noop logger.
func WithLogger(log logger.Logger) Option {
	return func(v *Vault) { v.logger = log }
}

// WithAlgorithm pins the AEAD algorithm used for newly encrypted data
// instead of selecting by CPU capability. Existing data always
// decrypts with the algorithm recorded alongside it.
func WithAlgorithm(algorithm string) Option {
	return func(v *Vault) { v.algorithm = algorithm }
}

// New creates a Vault for the given user backed by the storage
// collaborator. The user ID is authenticated into every wrapper's AAD,
// so wrappers cannot be spliced across users.
func New(storage Storage, userID string, opts ...Option) (*Vault, error) {
	if storage == nil {
		return nil, errors.New("vault: storage is required")
	}
	if userID == "" {
		return nil, errors.New("vault: user ID is required")
	}

	v := &Vault{
		storage: storage,
		logger:  logger.NewNoop(),
		userID:  userID,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// CreateSecret protects a new payload: it generates a fresh DEK,
// serializes and encrypts the plaintext, wraps the DEK under the
// credential's KEK, and persists the blob with exactly one wrapper.
// Returns the new secret ID.
func (v *Vault) CreateSecret(
	ctx context.Context,
	secretType types.SecretType,
	plaintext any,
	cred credential.Credential,
	format envelope.Format) (secretID string, err error) {

	defer metrics.ObserveDuration(metrics.OpCreateSecret, time.Now())
	defer func() { metrics.RecordOperation(metrics.OpCreateSecret, err) }()

	if cred == nil {
		return "", ErrInvalidCredential
	}
	if !format.Valid() {
		return "", fmt.Errorf("%w: %q", envelope.ErrUnsupportedFormat, format)
	}

	serialized, err := envelope.Serialize(plaintext, format)
	if err != nil {
		return "", err
	}

	secretID = uuid.NewString()

	dek, err := aead.GenerateKey()
	if err != nil {
		return "", err
	}
	defer zeroize(dek)

	algorithm := v.algorithm
	if algorithm == "" {
		algorithm = aead.SelectOptimal()
	}

	cipher, err := aead.New(algorithm, dek)
	if err != nil {
		return "", err
	}

	blobAAD := aad.Encode(aadContextBlob, secretID, secretType.String())
	encrypted, err := cipher.Encrypt(serialized, blobAAD)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, len(encrypted.Nonce)+len(encrypted.Ciphertext))
	blob = append(blob, encrypted.Nonce...)
	blob = append(blob, encrypted.Ciphertext...)
	sum := sha256.Sum256(blob)
	blobHash := hex.EncodeToString(sum[:])

	wrapper, err := v.wrapDEK(ctx, secretID, dek, cred, algorithm)
	if err != nil {
		return "", err
	}

	record := &SecretRecord{
		SecretID:   secretID,
		SecretType: secretType,
		Format:     format,
		Algorithm:  algorithm,
		BlobHash:   blobHash,
		BlobSize:   int64(len(blob)),
	}

	if err = v.storage.PutBlob(ctx, secretID, blobHash, blob); err != nil {
		return "", fmt.Errorf("vault: blob upload failed: %w", err)
	}
	if err = v.storage.StoreSecret(ctx, record, wrapper); err != nil {
		return "", fmt.Errorf("vault: secret persistence failed: %w", err)
	}

	v.logger.Info("secret created",
		logger.String("secret_id", secretID),
		logger.String("secret_type", secretType.String()),
		logger.String("kek_source", cred.Source().String()),
		logger.String("algorithm", algorithm))

	return secretID, nil
}

// AddWrapper enrolls an additional credential for an existing secret.
// It recovers the DEK through the unlocking credential and wraps the
// same DEK under the new credential, so every wrapper of the secret
// stays consistent. The wrapper store is an idempotent upsert on
// (secretID, credentialID); retrying after a transient failure is safe.
func (v *Vault) AddWrapper(
	ctx context.Context,
	secretID string,
	newCred credential.Credential,
	unlockingCred credential.Credential) (err error) {

	defer metrics.ObserveDuration(metrics.OpAddWrapper, time.Now())
	defer func() { metrics.RecordOperation(metrics.OpAddWrapper, err) }()

	if newCred == nil || unlockingCred == nil {
		return ErrInvalidCredential
	}

	bundle, err := v.storage.GetSecretByID(ctx, secretID)
	if err != nil {
		return fmt.Errorf("vault: secret lookup failed: %w", err)
	}
	if bundle == nil || bundle.Secret == nil {
		return ErrUnauthenticated
	}

	dek, err := v.unwrapDEK(ctx, bundle, []credential.Credential{unlockingCred})
	if err != nil {
		if errors.Is(err, ErrCredentialRequired) {
			return ErrNoWrapperAvailable
		}
		return err
	}
	defer zeroize(dek)

	algorithm := v.algorithm
	if algorithm == "" {
		algorithm = aead.SelectOptimal()
	}

	wrapper, err := v.wrapDEK(ctx, secretID, dek, newCred, algorithm)
	if err != nil {
		return err
	}

	if err = v.storage.AddWrapper(ctx, secretID, wrapper); err != nil {
		return fmt.Errorf("vault: wrapper persistence failed: %w", err)
	}

	v.logger.Info("wrapper added",
		logger.String("secret_id", secretID),
		logger.String("credential_id", wrapper.CredentialID),
		logger.String("kek_source", wrapper.KekSource.String()))

	return nil
}

// LoadSecret decrypts the secret of the given type into out. Returns
// (false, nil) when no secret of that type is enrolled; absence is
// not an error. Wrappers are tried in fixed priority order (passkey,
// OPAQUE, wallet, recovery) against whichever available credential
// matches each wrapper; the first success short-circuits. When no
// available credential matches any wrapper, the error is
// ErrCredentialRequired naming the family that would unlock it.
func (v *Vault) LoadSecret(
	ctx context.Context,
	secretType types.SecretType,
	available []credential.Credential,
	out any) (found bool, err error) {

	defer metrics.ObserveDuration(metrics.OpLoadSecret, time.Now())
	defer func() {
		if found || err != nil {
			metrics.RecordOperation(metrics.OpLoadSecret, err)
		}
	}()

	bundle, err := v.storage.GetSecretBundle(ctx, secretType)
	if err != nil {
		return false, fmt.Errorf("vault: secret lookup failed: %w", err)
	}
	if bundle == nil || bundle.Secret == nil {
		return false, nil
	}
	if !bundle.Secret.Format.Valid() {
		return false, ErrFormatMismatch
	}

	dek, err := v.unwrapDEK(ctx, bundle, available)
	if err != nil {
		return false, err
	}
	defer zeroize(dek)

	blob, err := v.storage.GetBlob(ctx, bundle.Secret.SecretID, bundle.Secret.BlobHash)
	if err != nil {
		return false, fmt.Errorf("vault: blob download failed: %w", err)
	}

	sum := sha256.Sum256(blob)
	if hex.EncodeToString(sum[:]) != bundle.Secret.BlobHash {
		return false, ErrIntegrity
	}
	if len(blob) <= aead.NonceSize {
		return false, ErrIntegrity
	}

	cipher, err := aead.New(bundle.Secret.Algorithm, dek)
	if err != nil {
		return false, err
	}

	blobAAD := aad.Encode(aadContextBlob, bundle.Secret.SecretID, secretType.String())
	serialized, err := cipher.Decrypt(&types.EncryptedData{
		Nonce:      blob[:aead.NonceSize],
		Ciphertext: blob[aead.NonceSize:],
		Algorithm:  bundle.Secret.Algorithm,
	}, blobAAD)
	if err != nil {
		return false, err
	}

	if err = envelope.Deserialize(serialized, bundle.Secret.Format, out); err != nil {
		if errors.Is(err, envelope.ErrTypeMismatch) {
			return false, ErrFormatMismatch
		}
		return false, err
	}

	v.logger.Debug("secret loaded",
		logger.String("secret_id", bundle.Secret.SecretID),
		logger.String("secret_type", secretType.String()))

	return true, nil
}

// wrapDEK derives the credential's KEK and wraps the DEK under it,
// producing a wrapper record bound to (secretID, credentialID, userID)
// through the AAD.
func (v *Vault) wrapDEK(
	ctx context.Context,
	secretID string,
	dek []byte,
	cred credential.Credential,
	algorithm string) (*WrapperRecord, error) {

	// Salt is generated fresh at wrap time for salted families and
	// persisted in the wrapper so unlock can replay the evaluation.
	var prfSalt []byte
	if cred.Source() == types.KekSourcePRF {
		prfSalt = make([]byte, prfSaltSize)
		if _, err := rand.Read(prfSalt); err != nil {
			return nil, fmt.Errorf("vault: failed to generate PRF salt: %w", err)
		}
	}

	material, err := cred.Material(ctx, prfSalt)
	if err != nil {
		return nil, err
	}
	defer zeroize(material)

	credID, err := cred.ID(ctx)
	if err != nil {
		return nil, err
	}

	kek, err := kdf.DeriveKEKWithAlgorithm(material, cred.Source(), algorithm)
	if err != nil {
		return nil, err
	}
	defer kek.Destroy()

	wrapAAD := aad.Encode(aadContextWrap, secretID, credID, v.userID)
	wrapped, err := kek.Wrap(dek, wrapAAD)
	if err != nil {
		return nil, err
	}

	wrappedDEK, err := EncodeWrappedDEK(wrapped)
	if err != nil {
		return nil, err
	}

	return &WrapperRecord{
		SecretID:     secretID,
		CredentialID: credID,
		WrappedDEK:   wrappedDEK,
		KekSource:    cred.Source(),
		PRFSalt:      prfSalt,
	}, nil
}

// unwrapDEK recovers the DEK by trying wrappers in fixed priority
// order against the available credentials. A cancelled ceremony is a
// normal failed attempt and the next wrapper is tried; an integrity
// failure on a matched wrapper is terminal.
func (v *Vault) unwrapDEK(
	ctx context.Context,
	bundle *SecretBundle,
	available []credential.Credential) ([]byte, error) {

	if len(bundle.Wrappers) == 0 {
		// A secret with no wrappers is unrecoverable; treat it the
		// same as a missing credential.
		return nil, &CredentialRequiredError{Family: types.KekSourcePRF}
	}

	wrappers := make([]*WrapperRecord, len(bundle.Wrappers))
	copy(wrappers, bundle.Wrappers)
	sort.SliceStable(wrappers, func(i, j int) bool {
		return wrappers[i].KekSource.UnlockPriority() < wrappers[j].KekSource.UnlockPriority()
	})

	for _, wrapper := range wrappers {
		cred := matchCredential(available, wrapper)
		if cred == nil {
			continue
		}

		dek, err := v.tryUnwrap(ctx, bundle.Secret.SecretID, wrapper, cred)
		if err == nil {
			metrics.RecordUnlockAttempt(wrapper.KekSource.String(), metrics.StatusSuccess)
			return dek, nil
		}
		if errors.Is(err, credential.ErrCeremonyCancelled) {
			metrics.RecordUnlockAttempt(wrapper.KekSource.String(), metrics.StatusCancelled)
			v.logger.Debug("unlock ceremony cancelled",
				logger.String("secret_id", bundle.Secret.SecretID),
				logger.String("kek_source", wrapper.KekSource.String()))
			continue
		}

		metrics.RecordUnlockAttempt(wrapper.KekSource.String(), metrics.StatusError)
		if errors.Is(err, ErrIntegrity) {
			return nil, err
		}
		return nil, fmt.Errorf("vault: unwrap with %s credential failed: %w", wrapper.KekSource, err)
	}

	return nil, &CredentialRequiredError{Family: wrappers[0].KekSource}
}

// tryUnwrap attempts to recover the DEK from one wrapper with one
// matched credential.
func (v *Vault) tryUnwrap(
	ctx context.Context,
	secretID string,
	wrapper *WrapperRecord,
	cred credential.Credential) ([]byte, error) {

	material, err := cred.Material(ctx, wrapper.PRFSalt)
	if err != nil {
		return nil, err
	}
	defer zeroize(material)

	credID, err := cred.ID(ctx)
	if err != nil {
		return nil, err
	}
	if credID != wrapper.CredentialID {
		// The authenticator selected a different credential than the
		// wrapper is bound to; not an integrity failure.
		return nil, credential.ErrCeremonyCancelled
	}

	wrapped, err := DecodeWrappedDEK(wrapper.WrappedDEK)
	if err != nil {
		return nil, err
	}

	kek, err := kdf.DeriveKEKWithAlgorithm(material, wrapper.KekSource, wrapped.Algorithm)
	if err != nil {
		return nil, err
	}
	defer kek.Destroy()

	wrapAAD := aad.Encode(aadContextWrap, secretID, wrapper.CredentialID, v.userID)
	return kek.Unwrap(wrapped, wrapAAD)
}

// matchCredential finds the first available credential that can
// service the wrapper: same family and a credential-ID match, without
// prompting.
func matchCredential(available []credential.Credential, wrapper *WrapperRecord) credential.Credential {
	for _, cred := range available {
		if cred == nil {
			continue
		}
		if cred.Source() != wrapper.KekSource {
			continue
		}
		if cred.Matches(wrapper.CredentialID) {
			return cred
		}
	}
	return nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
