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

// Package credential provides the adapters that turn heterogeneous
// credentials into the two things the vault needs: a stable credential
// identifier and raw key material for KEK derivation.
//
// Four families are supported, modeled as independent adapters behind
// one interface rather than a shared base implementation, because each
// family's material derivation is algorithmically unrelated to the
// others:
//
//   - Passkey: WebAuthn PRF (hmac-secret) output from an authenticator
//     ceremony, salted per secret.
//   - Opaque: the export key produced as a side effect of an OPAQUE
//     password-authenticated key exchange.
//   - Wallet: a structured signature over a fully deterministic message,
//     so the same wallet reproduces byte-identical material on re-signing.
//   - Recovery: a normalized high-entropy recovery code.
//
// Ceremony collaborators (the authenticator prompt, the OPAQUE client,
// the wallet signer) are external; this package defines the interfaces
// they implement and never sees a password or private key.
package credential

import (
	"context"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// Credential is the adapter interface over the credential families.
// Implementations are safe for concurrent use.
type Credential interface {
	// Source returns the KEK family this credential derives material for.
	Source() types.KekSource

	// Matches reports whether this credential can service a wrapper
	// bound to the given credential identifier. It never prompts;
	// matching is used to pick a wrapper before paying for a ceremony.
	Matches(credentialID string) bool

	// ID returns the stable credential identifier. For passkeys the
	// identifier is assigned by the authenticator and is only known
	// after a ceremony has completed.
	ID(ctx context.Context) (string, error)

	// Material produces the raw key material for KEK derivation.
	// prfSalt is the per-secret salt for salted families (passkey PRF)
	// and ignored by the others. Material may suspend on a ceremony
	// prompt; a user-declined ceremony returns ErrCeremonyCancelled.
	Material(ctx context.Context, prfSalt []byte) ([]byte, error)
}
