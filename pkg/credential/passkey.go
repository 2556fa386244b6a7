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
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-credvault/pkg/types"
	"golang.org/x/sync/singleflight"
)

// PasskeyAssertion is the result of an authenticator ceremony with the
// PRF (hmac-secret) extension evaluated. It is supplied transiently by
// the authentication collaborator; the vault persists only the derived
// credential ID and the salt.
type PasskeyAssertion struct {
	// CredentialID is the identifier assigned by the authenticator.
	CredentialID protocol.URLEncodedBase64

	// UserHandle is the WebAuthn user handle returned with the assertion.
	UserHandle []byte

	// PRFOutput is the PRF extension output for the requested salt.
	// Reproducible only by the registered physical authenticator.
	PRFOutput []byte

	// Salt is the PRF evaluation salt the output is bound to.
	Salt []byte
}

// PasskeyProver performs an authenticator ceremony and evaluates the
// PRF extension. Implementations bridge to the platform WebAuthn API
// or a CTAP2 transport; a user-declined prompt must return
// ErrCeremonyCancelled rather than blocking.
type PasskeyProver interface {
	// EvaluatePRF runs one ceremony over the candidate credentials and
	// returns the assertion for whichever credential the authenticator
	// selected. An empty candidate list allows any discoverable
	// credential for the relying party.
	EvaluatePRF(ctx context.Context, allowed []protocol.CredentialDescriptor, salt []byte) (*PasskeyAssertion, error)
}

// Passkey adapts a WebAuthn PRF-capable authenticator to the
// Credential interface. Concurrent Material calls for the same
// candidate set and salt share a single in-flight ceremony, so a
// second caller awaits the first instead of triggering a duplicate
// physical prompt.
type Passkey struct {
	prover  PasskeyProver
	userID  string
	allowed []protocol.CredentialDescriptor

	group singleflight.Group

	mu         sync.Mutex
	assertions map[string]*PasskeyAssertion // keyed by hex(salt)
	lastID     protocol.URLEncodedBase64
}

// compile-time interface check
var _ Credential = (*Passkey)(nil)

// NewPasskey creates a passkey credential adapter. The allowed list
// restricts the ceremony to already-registered credentials; leave it
// empty to accept any discoverable credential.
func NewPasskey(userID string, prover PasskeyProver, allowed ...protocol.CredentialDescriptor) (*Passkey, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if prover == nil {
		return nil, ErrProverRequired
	}
	return &Passkey{
		prover:     prover,
		userID:     userID,
		allowed:    allowed,
		assertions: make(map[string]*PasskeyAssertion),
	}, nil
}

// NewPasskeyFromAssertion creates a passkey adapter from a ceremony
// that already happened (e.g. material fetched from the session
// cache). The adapter can only serve the assertion's salt; requesting
// material for a different salt fails.
func NewPasskeyFromAssertion(userID string, assertion *PasskeyAssertion) (*Passkey, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if assertion == nil || len(assertion.CredentialID) == 0 || len(assertion.PRFOutput) == 0 {
		return nil, ErrInvalidAssertion
	}
	p := &Passkey{
		userID:     userID,
		assertions: make(map[string]*PasskeyAssertion),
		lastID:     assertion.CredentialID,
	}
	p.assertions[hex.EncodeToString(assertion.Salt)] = assertion
	return p, nil
}

// Source returns types.KekSourcePRF.
func (p *Passkey) Source() types.KekSource {
	return types.KekSourcePRF
}

// UserID returns the user this credential belongs to.
func (p *Passkey) UserID() string {
	return p.userID
}

// Matches reports whether a wrapper bound to credentialID could be
// serviced by this adapter: either a completed ceremony already named
// that credential, or it is in the candidate list (an empty candidate
// list matches any PRF wrapper).
func (p *Passkey) Matches(credentialID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.lastID) > 0 && p.lastID.String() == credentialID {
		return true
	}
	if p.prover == nil {
		// Assertion-backed adapter bound to a different credential.
		return false
	}
	if len(p.allowed) == 0 {
		return true
	}
	for _, d := range p.allowed {
		if d.CredentialID.String() == credentialID {
			return true
		}
	}
	return false
}

// ID returns the authenticator-assigned credential identifier. Before
// any ceremony it is only known when the candidate list has exactly
// one entry; otherwise ErrCeremonyRequired is returned and the caller
// must obtain Material first.
func (p *Passkey) ID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.lastID) > 0 {
		return p.lastID.String(), nil
	}
	if len(p.allowed) == 1 {
		return p.allowed[0].CredentialID.String(), nil
	}
	return "", ErrCeremonyRequired
}

// Material evaluates the PRF extension for the given per-secret salt.
// The ceremony is de-duplicated: concurrent callers with the same
// candidate set and salt share one authenticator prompt.
func (p *Passkey) Material(ctx context.Context, prfSalt []byte) ([]byte, error) {
	saltKey := hex.EncodeToString(prfSalt)

	p.mu.Lock()
	if a, ok := p.assertions[saltKey]; ok {
		p.mu.Unlock()
		return cloneBytes(a.PRFOutput), nil
	}
	if p.prover == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: no assertion for requested salt", ErrInvalidAssertion)
	}
	p.mu.Unlock()

	result, err, _ := p.group.Do(p.flightKey(prfSalt), func() (interface{}, error) {
		assertion, err := p.prover.EvaluatePRF(ctx, p.allowed, prfSalt)
		if err != nil {
			return nil, err
		}
		if assertion == nil || len(assertion.CredentialID) == 0 || len(assertion.PRFOutput) == 0 {
			return nil, ErrInvalidAssertion
		}

		p.mu.Lock()
		p.assertions[saltKey] = assertion
		p.lastID = assertion.CredentialID
		p.mu.Unlock()

		return assertion, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneBytes(result.(*PasskeyAssertion).PRFOutput), nil
}

// flightKey builds the singleflight key from the sorted set of
// candidate credential identifiers plus the salt, so distinct salts
// or candidate sets never coalesce into one ceremony.
func (p *Passkey) flightKey(salt []byte) string {
	ids := make([]string, 0, len(p.allowed))
	for _, d := range p.allowed {
		ids = append(ids, d.CredentialID.String())
	}
	sort.Strings(ids)
	return strings.Join(ids, ",") + "|" + hex.EncodeToString(salt)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
