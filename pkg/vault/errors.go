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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-credvault/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credvault/pkg/types"
)

var (
	// ErrIntegrity is returned when a blob or wrapper fails
	// authentication: tampered ciphertext, a wrong key, or altered
	// AAD-bound identifiers. Deliberately undifferentiated to avoid an
	// oracle, and never auto-retried; a different key will not become
	// correct on the second attempt.
	ErrIntegrity = aead.ErrIntegrity

	// ErrFormatMismatch is returned when the envelope format recorded
	// with a secret does not match what deserialization requires. A
	// mismatch is treated as a tamper signal and never coerced.
	ErrFormatMismatch = errors.New("vault: envelope format mismatch")

	// ErrCredentialRequired is returned when no available credential
	// matches any wrapper of the secret. Match it with errors.Is and
	// extract the family with errors.As on *CredentialRequiredError.
	ErrCredentialRequired = errors.New("vault: credential required")

	// ErrNoWrapperAvailable is returned by AddWrapper when the
	// unlocking credential cannot open any existing wrapper.
	ErrNoWrapperAvailable = errors.New("vault: no available credential can unlock any existing wrapper")

	// ErrUnauthenticated is returned when the secret is unknown to storage.
	ErrUnauthenticated = errors.New("vault: unknown secret")

	// ErrInvalidCredential indicates a nil or malformed credential argument.
	ErrInvalidCredential = errors.New("vault: invalid credential")
)

// CredentialRequiredError names the credential family that would
// unlock the secret, so callers can prompt for the right thing.
type CredentialRequiredError struct {
	// Family is the KEK source of the highest-priority wrapper no
	// available credential could service.
	Family types.KekSource
}

// Error implements the error interface.
func (e *CredentialRequiredError) Error() string {
	return fmt.Sprintf("vault: %s credential required to unlock this secret", e.Family)
}

// Is makes errors.Is(err, ErrCredentialRequired) match.
func (e *CredentialRequiredError) Is(target error) bool {
	return target == ErrCredentialRequired
}
