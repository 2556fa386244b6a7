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

package credential

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// mockProver simulates a PRF-capable authenticator: the PRF output is
// an HMAC over the salt keyed by a per-credential secret, which mirrors
// the hmac-secret extension closely enough for adapter tests.
type mockProver struct {
	credentialID protocol.URLEncodedBase64
	secret       []byte
	ceremonies   atomic.Int64
	cancel       bool
	block        chan struct{} // when set, ceremonies wait until closed
}

func newMockProver(credentialID string) *mockProver {
	return &mockProver{
		credentialID: protocol.URLEncodedBase64(credentialID),
		secret:       []byte("authenticator-secret-" + credentialID),
	}
}

func (m *mockProver) EvaluatePRF(ctx context.Context, allowed []protocol.CredentialDescriptor, salt []byte) (*PasskeyAssertion, error) {
	m.ceremonies.Add(1)
	if m.block != nil {
		<-m.block
	}
	if m.cancel {
		return nil, ErrCeremonyCancelled
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(salt)
	return &PasskeyAssertion{
		CredentialID: m.credentialID,
		PRFOutput:    mac.Sum(nil),
		Salt:         salt,
	}, nil
}

func TestPasskey_Material(t *testing.T) {
	prover := newMockProver("cred-a")
	passkey, err := NewPasskey("alice", prover)
	require.NoError(t, err)

	salt := []byte{1, 2, 3}
	material, err := passkey.Material(context.Background(), salt)
	require.NoError(t, err)
	assert.NotEmpty(t, material)
	assert.EqualValues(t, 1, prover.ceremonies.Load())

	// Same salt is served from the cached assertion, no second prompt.
	again, err := passkey.Material(context.Background(), salt)
	require.NoError(t, err)
	assert.Equal(t, material, again)
	assert.EqualValues(t, 1, prover.ceremonies.Load())

	// A different salt needs a new ceremony and yields new material.
	other, err := passkey.Material(context.Background(), []byte{9, 9, 9})
	require.NoError(t, err)
	assert.NotEqual(t, material, other)
	assert.EqualValues(t, 2, prover.ceremonies.Load())
}

func TestPasskey_ConcurrentCeremonyDeduplication(t *testing.T) {
	prover := newMockProver("cred-a")
	prover.block = make(chan struct{})
	passkey, err := NewPasskey("alice", prover)
	require.NoError(t, err)

	const callers = 16
	salt := []byte("shared-salt")

	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = passkey.Material(context.Background(), salt)
		}(i)
	}

	// All callers are queued behind one in-flight ceremony.
	close(prover.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i], "all callers must observe the same material")
	}
	assert.EqualValues(t, 1, prover.ceremonies.Load(),
		"concurrent callers with the same salt must share one ceremony")
}

func TestPasskey_CancelledCeremony(t *testing.T) {
	prover := newMockProver("cred-a")
	prover.cancel = true
	passkey, err := NewPasskey("alice", prover)
	require.NoError(t, err)

	_, err = passkey.Material(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrCeremonyCancelled)

	// A cancelled ceremony leaves no cached state; the user can retry.
	prover.cancel = false
	_, err = passkey.Material(context.Background(), []byte{1})
	assert.NoError(t, err)
}

func TestPasskey_ID(t *testing.T) {
	t.Run("unknown before ceremony with multiple candidates", func(t *testing.T) {
		passkey, err := NewPasskey("alice", newMockProver("cred-a"),
			protocol.CredentialDescriptor{CredentialID: protocol.URLEncodedBase64("cred-a")},
			protocol.CredentialDescriptor{CredentialID: protocol.URLEncodedBase64("cred-b")},
		)
		require.NoError(t, err)

		_, err = passkey.ID(context.Background())
		assert.ErrorIs(t, err, ErrCeremonyRequired)
	})

	t.Run("known with a single candidate", func(t *testing.T) {
		descriptor := protocol.CredentialDescriptor{CredentialID: protocol.URLEncodedBase64("cred-a")}
		passkey, err := NewPasskey("alice", newMockProver("cred-a"), descriptor)
		require.NoError(t, err)

		id, err := passkey.ID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, descriptor.CredentialID.String(), id)
	})

	t.Run("known after ceremony", func(t *testing.T) {
		prover := newMockProver("cred-a")
		passkey, err := NewPasskey("alice", prover)
		require.NoError(t, err)

		_, err = passkey.Material(context.Background(), []byte{1})
		require.NoError(t, err)

		id, err := passkey.ID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, prover.credentialID.String(), id)
	})
}

func TestPasskey_Matches(t *testing.T) {
	credA := protocol.URLEncodedBase64("cred-a")

	t.Run("empty candidate list matches anything", func(t *testing.T) {
		passkey, err := NewPasskey("alice", newMockProver("cred-a"))
		require.NoError(t, err)
		assert.True(t, passkey.Matches("whatever"))
	})

	t.Run("candidate list restricts matching", func(t *testing.T) {
		passkey, err := NewPasskey("alice", newMockProver("cred-a"),
			protocol.CredentialDescriptor{CredentialID: credA})
		require.NoError(t, err)
		assert.True(t, passkey.Matches(credA.String()))
		assert.False(t, passkey.Matches("cred-other"))
	})

	t.Run("assertion-backed adapter matches its credential only", func(t *testing.T) {
		passkey, err := NewPasskeyFromAssertion("alice", &PasskeyAssertion{
			CredentialID: credA,
			PRFOutput:    []byte("prf-output"),
			Salt:         []byte{1, 2, 3},
		})
		require.NoError(t, err)
		assert.True(t, passkey.Matches(credA.String()))
		assert.False(t, passkey.Matches("cred-other"),
			"without a prover there is no ceremony that could produce another credential")
	})
}

func TestPasskey_FromAssertion(t *testing.T) {
	assertion := &PasskeyAssertion{
		CredentialID: protocol.URLEncodedBase64("cred-a"),
		PRFOutput:    []byte("cached-prf-output"),
		Salt:         []byte{1, 2, 3},
	}
	passkey, err := NewPasskeyFromAssertion("alice", assertion)
	require.NoError(t, err)

	assert.Equal(t, types.KekSourcePRF, passkey.Source())

	material, err := passkey.Material(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, assertion.PRFOutput, material)

	// A salt the assertion was not evaluated for cannot be served.
	_, err = passkey.Material(context.Background(), []byte{4, 5, 6})
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestNewPasskey_Validation(t *testing.T) {
	_, err := NewPasskey("", newMockProver("cred-a"))
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewPasskey("alice", nil)
	assert.ErrorIs(t, err, ErrProverRequired)

	_, err = NewPasskeyFromAssertion("alice", &PasskeyAssertion{})
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}
