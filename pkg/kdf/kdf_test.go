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

package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-credvault/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credvault/pkg/types"
)

func testDEK(t *testing.T) []byte {
	t.Helper()
	dek, err := aead.GenerateKey()
	require.NoError(t, err)
	return dek
}

func TestDeriveKEK_Deterministic(t *testing.T) {
	material := []byte("prf-output-material")
	dek := testDEK(t)

	// Two independently derived handles from the same material and
	// family must be interchangeable.
	kek1, err := DeriveKEKWithAlgorithm(material, types.KekSourcePRF, aead.AES256GCM)
	require.NoError(t, err)
	kek2, err := DeriveKEKWithAlgorithm(material, types.KekSourcePRF, aead.AES256GCM)
	require.NoError(t, err)

	wrapped, err := kek1.Wrap(dek, []byte("aad"))
	require.NoError(t, err)

	unwrapped, err := kek2.Unwrap(wrapped, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)
}

func TestDeriveKEK_DomainSeparation(t *testing.T) {
	// Identical raw bytes presented by two families must never derive
	// the same KEK.
	material := []byte("identical-material-bytes")
	dek := testDEK(t)

	families := []types.KekSource{
		types.KekSourcePRF,
		types.KekSourceOpaque,
		types.KekSourceWallet,
		types.KekSourceRecovery,
	}

	for _, wrapFamily := range families {
		wrapKEK, err := DeriveKEKWithAlgorithm(material, wrapFamily, aead.AES256GCM)
		require.NoError(t, err)

		wrapped, err := wrapKEK.Wrap(dek, nil)
		require.NoError(t, err)

		for _, unwrapFamily := range families {
			unwrapKEK, err := DeriveKEKWithAlgorithm(material, unwrapFamily, aead.AES256GCM)
			require.NoError(t, err)

			unwrapped, err := unwrapKEK.Unwrap(wrapped, nil)
			if wrapFamily == unwrapFamily {
				require.NoError(t, err)
				assert.Equal(t, dek, unwrapped)
			} else {
				assert.ErrorIs(t, err, aead.ErrIntegrity,
					"%s KEK must not unwrap a %s wrapper", unwrapFamily, wrapFamily)
			}
		}
	}
}

func TestDeriveKEK_MaterialSensitivity(t *testing.T) {
	dek := testDEK(t)

	kek1, err := DeriveKEK([]byte("material-a"), types.KekSourceOpaque)
	require.NoError(t, err)
	kek2, err := DeriveKEK([]byte("material-b"), types.KekSourceOpaque)
	require.NoError(t, err)

	wrapped, err := kek1.Wrap(dek, nil)
	require.NoError(t, err)

	_, err = kek2.Unwrap(wrapped, nil)
	assert.ErrorIs(t, err, aead.ErrIntegrity)
}

func TestDeriveKEK_EmptyMaterial(t *testing.T) {
	_, err := DeriveKEK(nil, types.KekSourcePRF)
	assert.ErrorIs(t, err, ErrInvalidMaterial)

	_, err = DeriveKEK([]byte{}, types.KekSourcePRF)
	assert.ErrorIs(t, err, ErrInvalidMaterial)
}

func TestDeriveKEK_UnknownSource(t *testing.T) {
	_, err := DeriveKEK([]byte("material"), types.KekSource("password"))
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestKEK_WrapInvalidDEKSize(t *testing.T) {
	kek, err := DeriveKEK([]byte("material"), types.KekSourceRecovery)
	require.NoError(t, err)

	_, err = kek.Wrap(make([]byte, 16), nil)
	assert.Error(t, err)
}

func TestKEK_AADBinding(t *testing.T) {
	kek, err := DeriveKEK([]byte("material"), types.KekSourceWallet)
	require.NoError(t, err)
	dek := testDEK(t)

	wrapped, err := kek.Wrap(dek, []byte("secret-1|cred-1|alice"))
	require.NoError(t, err)

	_, err = kek.Unwrap(wrapped, []byte("secret-2|cred-1|alice"))
	assert.ErrorIs(t, err, aead.ErrIntegrity)
}

func TestKEK_Destroy(t *testing.T) {
	kek, err := DeriveKEK([]byte("material"), types.KekSourcePRF)
	require.NoError(t, err)
	dek := testDEK(t)

	wrapped, err := kek.Wrap(dek, nil)
	require.NoError(t, err)

	kek.Destroy()

	_, err = kek.Wrap(dek, nil)
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = kek.Unwrap(wrapped, nil)
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestKEK_Accessors(t *testing.T) {
	kek, err := DeriveKEKWithAlgorithm([]byte("material"), types.KekSourceOpaque, aead.ChaCha20Poly1305)
	require.NoError(t, err)

	assert.Equal(t, types.KekSourceOpaque, kek.Source())
	assert.Equal(t, aead.ChaCha20Poly1305, kek.Algorithm())
}

func TestKEK_AlgorithmAgnosticKeyBytes(t *testing.T) {
	// The algorithm controls the wrapping cipher, not the derived key,
	// so a GCM wrapper cannot be opened by a ChaCha handle even from
	// identical material (the recorded algorithm travels with the data).
	material := []byte("material")
	dek := testDEK(t)

	gcmKEK, err := DeriveKEKWithAlgorithm(material, types.KekSourcePRF, aead.AES256GCM)
	require.NoError(t, err)
	chachaKEK, err := DeriveKEKWithAlgorithm(material, types.KekSourcePRF, aead.ChaCha20Poly1305)
	require.NoError(t, err)

	wrapped, err := gcmKEK.Wrap(dek, nil)
	require.NoError(t, err)

	_, err = chachaKEK.Unwrap(wrapped, nil)
	assert.ErrorIs(t, err, aead.ErrAlgorithmMismatch)
}
