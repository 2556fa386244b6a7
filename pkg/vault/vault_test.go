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

package vault_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-credvault/pkg/credential"
	"github.com/jeremyhahn/go-credvault/pkg/envelope"
	"github.com/jeremyhahn/go-credvault/pkg/storage"
	"github.com/jeremyhahn/go-credvault/pkg/storage/vaultstore"
	"github.com/jeremyhahn/go-credvault/pkg/types"
	"github.com/jeremyhahn/go-credvault/pkg/vault"
)

type profile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// testPRFProver simulates a PRF-capable authenticator keyed by a
// per-device secret.
type testPRFProver struct {
	credentialID protocol.URLEncodedBase64
	secret       []byte
	cancel       bool
}

func (p *testPRFProver) EvaluatePRF(ctx context.Context, allowed []protocol.CredentialDescriptor, salt []byte) (*credential.PasskeyAssertion, error) {
	if p.cancel {
		return nil, credential.ErrCeremonyCancelled
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(salt)
	return &credential.PasskeyAssertion{
		CredentialID: p.credentialID,
		PRFOutput:    mac.Sum(nil),
		Salt:         salt,
	}, nil
}

func newTestVault(t *testing.T) (*vault.Vault, storage.Backend) {
	t.Helper()
	backend := storage.NewMemory()
	store, err := vaultstore.New(backend)
	require.NoError(t, err)
	v, err := vault.New(store, "alice")
	require.NoError(t, err)
	return v, backend
}

func recoveryCred(t *testing.T, userID, code string) *credential.Recovery {
	t.Helper()
	cred, err := credential.NewRecovery(userID, code)
	require.NoError(t, err)
	return cred
}

func opaqueCred(t *testing.T, userID string, exportKey []byte) *credential.Opaque {
	t.Helper()
	cred, err := credential.NewOpaqueFromExportKey(userID, exportKey)
	require.NoError(t, err)
	return cred
}

func TestVault_CreateAndLoad_JSON(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()
	cred := recoveryCred(t, "alice", "ABCD-EFGH-1234")

	in := profile{DisplayName: "Alice", Email: "alice@example.com"}
	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, in, cred, envelope.FormatJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, secretID)

	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{cred}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestVault_CreateAndLoad_Binary(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()
	cred := opaqueCred(t, "alice", []byte("export-key-material"))

	keyMaterial := []byte{0x00, 0x01, 0xfe, 0xff, 0x42}
	_, err := v.CreateSecret(ctx, types.SecretTypeFheKeyMaterial, keyMaterial, cred, envelope.FormatBinary)
	require.NoError(t, err)

	var out []byte
	found, err := v.LoadSecret(ctx, types.SecretTypeFheKeyMaterial, []credential.Credential{cred}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, keyMaterial, out)
}

func TestVault_LoadSecret_NotEnrolled(t *testing.T) {
	v, _ := newTestVault(t)
	cred := recoveryCred(t, "alice", "code-1234")

	var out profile
	found, err := v.LoadSecret(context.Background(), types.SecretTypeProfile, []credential.Credential{cred}, &out)
	require.NoError(t, err, "absence is not an error")
	assert.False(t, found)
}

func TestVault_LoadSecret_PasskeyRoundTrip(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	prover := &testPRFProver{
		credentialID: protocol.URLEncodedBase64("device-key-1"),
		secret:       []byte("authenticator-secret"),
	}
	passkey, err := credential.NewPasskey("alice", prover)
	require.NoError(t, err)

	in := profile{DisplayName: "Alice"}
	_, err = v.CreateSecret(ctx, types.SecretTypeProfile, in, passkey, envelope.FormatJSON)
	require.NoError(t, err)

	// A fresh adapter for the same authenticator must unlock: the PRF
	// salt stored in the wrapper is replayed through a new ceremony.
	freshPasskey, err := credential.NewPasskey("alice", prover)
	require.NoError(t, err)

	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{freshPasskey}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestVault_LoadSecret_CredentialRequired(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		opaqueCred(t, "alice", []byte("alice-export-key")), envelope.FormatJSON)
	require.NoError(t, err)

	// A different account's OPAQUE credential matches no wrapper.
	var out profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile,
		[]credential.Credential{opaqueCred(t, "bob", []byte("bob-export-key"))}, &out)
	require.ErrorIs(t, err, vault.ErrCredentialRequired)

	var credErr *vault.CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, types.KekSourceOpaque, credErr.Family)
}

func TestVault_LoadSecret_WrongCodeOnMatchedCredential(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		recoveryCred(t, "alice", "RIGHT-CODE-1234"), envelope.FormatJSON)
	require.NoError(t, err)

	// Same account sentinel, wrong code: the wrapper matches but the
	// derived KEK does not, which is a terminal integrity failure.
	var out profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile,
		[]credential.Credential{recoveryCred(t, "alice", "WRONG-CODE-9999")}, &out)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestVault_AddWrapper_MultiCredentialUnlock(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	recovery := recoveryCred(t, "alice", "ABCD-EFGH-1234")
	opaque := opaqueCred(t, "alice", []byte("export-key"))

	in := profile{DisplayName: "Alice"}
	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, in, recovery, envelope.FormatJSON)
	require.NoError(t, err)

	require.NoError(t, v.AddWrapper(ctx, secretID, opaque, recovery))

	// The new credential alone now unlocks the same plaintext.
	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{opaque}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	// The original credential still works too.
	out = profile{}
	found, err = v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{recovery}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestVault_AddWrapper_UnknownSecret(t *testing.T) {
	v, _ := newTestVault(t)
	err := v.AddWrapper(context.Background(), "no-such-secret",
		opaqueCred(t, "alice", []byte("key")), recoveryCred(t, "alice", "code-1234"))
	assert.ErrorIs(t, err, vault.ErrUnauthenticated)
}

func TestVault_AddWrapper_UnlockingCredentialCannotOpen(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		recoveryCred(t, "alice", "code-1234"), envelope.FormatJSON)
	require.NoError(t, err)

	// OPAQUE credential has no wrapper on this secret.
	err = v.AddWrapper(ctx, secretID,
		recoveryCred(t, "alice", "other-code"), opaqueCred(t, "alice", []byte("key")))
	assert.ErrorIs(t, err, vault.ErrNoWrapperAvailable)
}

func TestVault_AddWrapper_Idempotent(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	recovery := recoveryCred(t, "alice", "code-1234")
	opaque := opaqueCred(t, "alice", []byte("export-key"))

	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		recovery, envelope.FormatJSON)
	require.NoError(t, err)

	// Retrying after a presumed transient failure must not error or
	// duplicate wrappers.
	require.NoError(t, v.AddWrapper(ctx, secretID, opaque, recovery))
	require.NoError(t, v.AddWrapper(ctx, secretID, opaque, recovery))

	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{opaque}, &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestVault_UnlockPriority(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	opaque := opaqueCred(t, "alice", []byte("export-key"))
	recovery := recoveryCred(t, "alice", "code-1234")

	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		opaque, envelope.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, v.AddWrapper(ctx, secretID, recovery, opaque))

	// OPAQUE outranks recovery in the unlock order, so the wrong
	// recovery code is never consulted when a valid OPAQUE credential
	// is present. If the ordering regressed, this load would fail with
	// an integrity error instead.
	wrongRecovery := recoveryCred(t, "alice", "wrong-code")
	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile,
		[]credential.Credential{wrongRecovery, opaque}, &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestVault_CancelledCeremonyFallsThrough(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	recovery := recoveryCred(t, "alice", "code-1234")
	workingProver := &testPRFProver{
		credentialID: protocol.URLEncodedBase64("device-key-1"),
		secret:       []byte("authenticator-secret"),
	}
	passkey, err := credential.NewPasskey("alice", workingProver)
	require.NoError(t, err)

	secretID, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		recovery, envelope.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, v.AddWrapper(ctx, secretID, passkey, recovery))

	// The passkey wrapper is tried first (highest priority), the user
	// declines the prompt, and the unlock falls through to recovery.
	cancellingPasskey, err := credential.NewPasskey("alice", &testPRFProver{
		credentialID: protocol.URLEncodedBase64("device-key-1"),
		secret:       []byte("authenticator-secret"),
		cancel:       true,
	})
	require.NoError(t, err)

	var out profile
	found, err := v.LoadSecret(ctx, types.SecretTypeProfile,
		[]credential.Credential{cancellingPasskey, recovery}, &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestVault_TamperedBlob(t *testing.T) {
	v, backend := newTestVault(t)
	ctx := context.Background()
	cred := recoveryCred(t, "alice", "code-1234")

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		cred, envelope.FormatJSON)
	require.NoError(t, err)

	keys, err := backend.List("blobs/")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	blob, err := backend.Get(keys[0])
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01
	require.NoError(t, backend.Put(keys[0], blob, nil))

	var out profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{cred}, &out)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestVault_TamperedWrapperCiphertext(t *testing.T) {
	v, backend := newTestVault(t)
	ctx := context.Background()
	cred := recoveryCred(t, "alice", "code-1234")

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		cred, envelope.FormatJSON)
	require.NoError(t, err)

	keys, err := backend.List("wrappers/")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	raw, err := backend.Get(keys[0])
	require.NoError(t, err)
	var wrapper vault.WrapperRecord
	require.NoError(t, json.Unmarshal(raw, &wrapper))

	// Flip one bit inside the wrapped DEK's ciphertext and re-store the
	// otherwise intact wrapper.
	var wrapped struct {
		Algorithm  string `json:"algorithm"`
		Nonce      string `json:"nonce"`
		Ciphertext string `json:"ciphertext"`
	}
	require.NoError(t, json.Unmarshal([]byte(wrapper.WrappedDEK), &wrapped))
	ciphertext, err := base64.StdEncoding.DecodeString(wrapped.Ciphertext)
	require.NoError(t, err)
	ciphertext[0] ^= 0x01
	wrapped.Ciphertext = base64.StdEncoding.EncodeToString(ciphertext)

	rewrapped, err := json.Marshal(&wrapped)
	require.NoError(t, err)
	wrapper.WrappedDEK = string(rewrapped)
	tampered, err := json.Marshal(&wrapper)
	require.NoError(t, err)
	require.NoError(t, backend.Put(keys[0], tampered, nil))

	var out profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{cred}, &out)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestVault_TamperedFormat(t *testing.T) {
	v, backend := newTestVault(t)
	ctx := context.Background()
	cred := recoveryCred(t, "alice", "code-1234")

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		cred, envelope.FormatJSON)
	require.NoError(t, err)

	// Rewrite the recorded envelope format to something unknown.
	keys, err := backend.List("secrets/id/")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	record, err := backend.Get(keys[0])
	require.NoError(t, err)
	tampered := strings.Replace(string(record), `"json"`, `"xml"`, 1)
	require.NoError(t, backend.Put(keys[0], []byte(tampered), nil))

	var out profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{cred}, &out)
	assert.ErrorIs(t, err, vault.ErrFormatMismatch)
}

func TestVault_WrapperBoundToUser(t *testing.T) {
	backend := storage.NewMemory()
	store, err := vaultstore.New(backend)
	require.NoError(t, err)

	aliceVault, err := vault.New(store, "alice")
	require.NoError(t, err)
	bobVault, err := vault.New(store, "bob")
	require.NoError(t, err)

	ctx := context.Background()
	cred := recoveryCred(t, "alice", "code-1234")

	_, err = aliceVault.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		cred, envelope.FormatJSON)
	require.NoError(t, err)

	// The wrapper AAD binds alice's user ID; replaying it through a
	// vault for another user must fail authentication.
	var out profile
	_, err = bobVault.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{cred}, &out)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestVault_CrossWrapperConsistency(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	creds := []credential.Credential{
		recoveryCred(t, "alice", "code-1234"),
		opaqueCred(t, "alice", []byte("export-key")),
	}

	wallet, err := credential.NewWalletFromSignature(
		credential.WalletIdentity{UserID: "alice", ChainID: 1, Address: "0xabcd"},
		[]byte("deterministic-signature"))
	require.NoError(t, err)
	creds = append(creds, wallet)

	in := []byte("fhe-client-key-bytes")
	secretID, err := v.CreateSecret(ctx, types.SecretTypeFheKeyMaterial, in, creds[0], envelope.FormatBinary)
	require.NoError(t, err)
	require.NoError(t, v.AddWrapper(ctx, secretID, creds[1], creds[0]))
	require.NoError(t, v.AddWrapper(ctx, secretID, creds[2], creds[1]))

	// Every wrapper unwraps to the same DEK: each credential alone
	// recovers identical plaintext.
	for _, cred := range creds {
		var out []byte
		found, err := v.LoadSecret(ctx, types.SecretTypeFheKeyMaterial,
			[]credential.Credential{cred}, &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, in, out)
	}
}

func TestVault_InvalidArguments(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	_, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{}, nil, envelope.FormatJSON)
	assert.ErrorIs(t, err, vault.ErrInvalidCredential)

	_, err = v.CreateSecret(ctx, types.SecretTypeProfile, profile{},
		recoveryCred(t, "alice", "code-1234"), envelope.Format("xml"))
	assert.ErrorIs(t, err, envelope.ErrUnsupportedFormat)

	err = v.AddWrapper(ctx, "id", nil, recoveryCred(t, "alice", "code-1234"))
	assert.ErrorIs(t, err, vault.ErrInvalidCredential)
}

func TestVault_New_Validation(t *testing.T) {
	store, err := vaultstore.New(storage.NewMemory())
	require.NoError(t, err)

	_, err = vault.New(nil, "alice")
	assert.Error(t, err)

	_, err = vault.New(store, "")
	assert.Error(t, err)
}

func TestVault_OpaqueThenWalletScenario(t *testing.T) {
	// A user signs up with a password, stores key material, later links
	// a wallet, and finally unlocks with the wallet alone after the
	// password session has ended.
	v, _ := newTestVault(t)
	ctx := context.Background()

	opaque := opaqueCred(t, "alice", []byte("opaque-export-key"))
	keyMaterial := []byte("client-key-material")

	secretID, err := v.CreateSecret(ctx, types.SecretTypeFheKeyMaterial, keyMaterial,
		opaque, envelope.FormatBinary)
	require.NoError(t, err)

	wallet, err := credential.NewWalletFromSignature(
		credential.WalletIdentity{UserID: "alice", ChainID: 1, Address: "0xAbCd"},
		[]byte("wallet-signature"))
	require.NoError(t, err)
	require.NoError(t, v.AddWrapper(ctx, secretID, wallet, opaque))

	// New session: only the wallet is available.
	freshWallet, err := credential.NewWalletFromSignature(
		credential.WalletIdentity{UserID: "alice", ChainID: 1, Address: "0xabcd"},
		[]byte("wallet-signature"))
	require.NoError(t, err)

	var out []byte
	found, err := v.LoadSecret(ctx, types.SecretTypeFheKeyMaterial,
		[]credential.Credential{freshWallet}, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, keyMaterial, out)

	// And the wallet alone cannot satisfy a secret that only has an
	// OPAQUE wrapper.
	otherSecret, err := v.CreateSecret(ctx, types.SecretTypeProfile, profile{DisplayName: "Alice"},
		opaque, envelope.FormatJSON)
	require.NoError(t, err)
	_ = otherSecret

	var p profile
	_, err = v.LoadSecret(ctx, types.SecretTypeProfile, []credential.Credential{freshWallet}, &p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vault.ErrCredentialRequired))
}
