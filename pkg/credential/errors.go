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

import "errors"

var (
	// ErrCeremonyCancelled indicates the user declined a credential
	// ceremony. It resolves like any other failed unlock attempt;
	// callers may re-prompt but must never treat it as a hang.
	ErrCeremonyCancelled = errors.New("credential: ceremony cancelled by user")

	// ErrCeremonyRequired indicates a passkey credential ID was
	// requested before any authenticator ceremony has completed.
	ErrCeremonyRequired = errors.New("credential: passkey ID unknown before authenticator ceremony")

	// ErrInvalidUserID indicates a missing user identifier.
	ErrInvalidUserID = errors.New("credential: invalid user ID")

	// ErrInvalidExportKey indicates a nil or empty OPAQUE export key.
	ErrInvalidExportKey = errors.New("credential: invalid export key")

	// ErrInvalidRecoveryCode indicates an empty recovery code after normalization.
	ErrInvalidRecoveryCode = errors.New("credential: invalid recovery code")

	// ErrInvalidWalletIdentity indicates a wallet identity with a
	// missing address or chain ID.
	ErrInvalidWalletIdentity = errors.New("credential: invalid wallet identity")

	// ErrProverRequired indicates a nil ceremony collaborator.
	ErrProverRequired = errors.New("credential: ceremony collaborator is required")

	// ErrInvalidAssertion indicates an assertion missing its credential
	// ID or PRF output.
	ErrInvalidAssertion = errors.New("credential: invalid passkey assertion")
)
