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
	"sync"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// ExportKeyProvider runs (or has run) an OPAQUE password-authenticated
// key exchange and yields the client-side export key. The password
// itself is never derivable from or transmitted with the export key;
// the provider is the external authentication collaborator.
type ExportKeyProvider interface {
	// ExportKey returns the export key for the authenticated session.
	// A user-declined login must return ErrCeremonyCancelled.
	ExportKey(ctx context.Context) ([]byte, error)
}

// Opaque adapts an OPAQUE export key to the Credential interface.
// There is one OPAQUE credential per account, so the identifier is a
// fixed sentinel derived from the user ID.
type Opaque struct {
	userID   string
	provider ExportKeyProvider

	mu     sync.Mutex
	cached []byte
}

var _ Credential = (*Opaque)(nil)

// NewOpaque creates an OPAQUE credential adapter backed by a provider.
func NewOpaque(userID string, provider ExportKeyProvider) (*Opaque, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if provider == nil {
		return nil, ErrProverRequired
	}
	return &Opaque{userID: userID, provider: provider}, nil
}

// NewOpaqueFromExportKey creates an OPAQUE credential adapter from an
// export key already in hand (e.g. from the session cache).
func NewOpaqueFromExportKey(userID string, exportKey []byte) (*Opaque, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if len(exportKey) == 0 {
		return nil, ErrInvalidExportKey
	}
	return &Opaque{userID: userID, cached: cloneBytes(exportKey)}, nil
}

// OpaqueCredentialID returns the fixed sentinel identifier for the
// account's OPAQUE credential.
func OpaqueCredentialID(userID string) string {
	return "opaque:" + userID
}

// Source returns types.KekSourceOpaque.
func (o *Opaque) Source() types.KekSource {
	return types.KekSourceOpaque
}

// UserID returns the user this credential belongs to.
func (o *Opaque) UserID() string {
	return o.userID
}

// Matches reports whether credentialID is this account's sentinel.
func (o *Opaque) Matches(credentialID string) bool {
	return credentialID == OpaqueCredentialID(o.userID)
}

// ID returns the fixed sentinel identifier.
func (o *Opaque) ID(ctx context.Context) (string, error) {
	return OpaqueCredentialID(o.userID), nil
}

// Material returns the export key. prfSalt is ignored; OPAQUE material
// is not salted per secret.
func (o *Opaque) Material(ctx context.Context, prfSalt []byte) ([]byte, error) {
	o.mu.Lock()
	if o.cached != nil {
		key := cloneBytes(o.cached)
		o.mu.Unlock()
		return key, nil
	}
	o.mu.Unlock()

	key, err := o.provider.ExportKey(ctx)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, ErrInvalidExportKey
	}

	o.mu.Lock()
	o.cached = cloneBytes(key)
	o.mu.Unlock()

	return cloneBytes(key), nil
}
