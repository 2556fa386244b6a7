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
	"strings"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// Recovery adapts a high-entropy recovery code to the Credential
// interface. The code is normalized (uppercased, separators stripped)
// so users can re-enter it with or without grouping hyphens.
type Recovery struct {
	userID string
	code   string
}

var _ Credential = (*Recovery)(nil)

// NewRecovery creates a recovery-code credential adapter.
func NewRecovery(userID, code string) (*Recovery, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	normalized := NormalizeRecoveryCode(code)
	if normalized == "" {
		return nil, ErrInvalidRecoveryCode
	}
	return &Recovery{userID: userID, code: normalized}, nil
}

// RecoveryCredentialID returns the fixed sentinel identifier for the
// account's recovery credential.
func RecoveryCredentialID(userID string) string {
	return "recovery:" + userID
}

// NormalizeRecoveryCode uppercases a code and strips whitespace and
// grouping separators.
func NormalizeRecoveryCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Source returns types.KekSourceRecovery.
func (r *Recovery) Source() types.KekSource {
	return types.KekSourceRecovery
}

// UserID returns the user this credential belongs to.
func (r *Recovery) UserID() string {
	return r.userID
}

// Matches reports whether credentialID is this account's sentinel.
func (r *Recovery) Matches(credentialID string) bool {
	return credentialID == RecoveryCredentialID(r.userID)
}

// ID returns the fixed sentinel identifier.
func (r *Recovery) ID(ctx context.Context) (string, error) {
	return RecoveryCredentialID(r.userID), nil
}

// Material returns the normalized recovery-code bytes. prfSalt is
// ignored; recovery material is not salted per secret.
func (r *Recovery) Material(ctx context.Context, prfSalt []byte) ([]byte, error) {
	return []byte(r.code), nil
}
