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

// Package session caches freshly obtained credential material for a
// short time so repeated unlocks within a session do not re-prompt.
//
// The cache is an explicit session-scoped object owned by the caller,
// not a process global, to keep it testable and to prevent cross-
// session leakage in a multi-tenant process. Getters enforce both the
// TTL and an identity-context match; any mismatch returns absence,
// never an error, because callers handle "absent" and "expired"
// identically (re-prompt). ResetAll is the single entry point for
// sign-out invalidation; no other mutation path clears state.
package session

import (
	"sync"
	"time"

	"github.com/jeremyhahn/go-credvault/pkg/credential"
	"github.com/jeremyhahn/go-credvault/pkg/metrics"
	"github.com/jeremyhahn/go-credvault/pkg/types"
)

const (
	// DefaultPasskeyTTL bounds cached PRF output.
	DefaultPasskeyTTL = 15 * time.Minute

	// DefaultOpaqueTTL bounds cached OPAQUE export keys.
	DefaultOpaqueTTL = 15 * time.Minute

	// DefaultWalletTTL bounds cached wallet signatures; the signature's
	// own validity window caps it further.
	DefaultWalletTTL = 24 * time.Hour
)

// Cache holds per-family credential material for one session.
// Safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	now func() time.Time

	passkeyTTL time.Duration
	opaqueTTL  time.Duration
	walletTTL  time.Duration

	passkey *passkeyEntry
	opaque  *opaqueEntry
	wallet  *walletEntry
}

type passkeyEntry struct {
	userID    string
	assertion *credential.PasskeyAssertion
	storedAt  time.Time
}

type opaqueEntry struct {
	userID    string
	exportKey []byte
	storedAt  time.Time
}

type walletEntry struct {
	identity  credential.WalletIdentity
	signature []byte
	expiresAt time.Time
	storedAt  time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithPasskeyTTL overrides the passkey material TTL.
func WithPasskeyTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.passkeyTTL = ttl }
}

// WithOpaqueTTL overrides the OPAQUE export key TTL.
func WithOpaqueTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.opaqueTTL = ttl }
}

// WithWalletTTL overrides the wallet signature TTL.
func WithWalletTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.walletTTL = ttl }
}

// NewCache creates a session cache with default TTLs.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		now:        time.Now,
		passkeyTTL: DefaultPasskeyTTL,
		opaqueTTL:  DefaultOpaqueTTL,
		walletTTL:  DefaultWalletTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PutPasskey caches a completed passkey assertion for the user.
func (c *Cache) PutPasskey(userID string, assertion *credential.PasskeyAssertion) {
	if userID == "" || assertion == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passkey = &passkeyEntry{userID: userID, assertion: assertion, storedAt: c.now()}
}

// Passkey returns the cached assertion for the user, or nil when
// absent, expired, or cached for a different user.
func (c *Cache) Passkey(userID string) *credential.PasskeyAssertion {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.passkey
	if e == nil || e.userID != userID {
		metrics.RecordCacheLookup(types.KekSourcePRF.String(), false)
		return nil
	}
	if c.now().Sub(e.storedAt) > c.passkeyTTL {
		metrics.RecordCacheLookup(types.KekSourcePRF.String(), false)
		return nil
	}
	metrics.RecordCacheLookup(types.KekSourcePRF.String(), true)
	return e.assertion
}

// PutOpaque caches an OPAQUE export key for the user.
func (c *Cache) PutOpaque(userID string, exportKey []byte) {
	if userID == "" || len(exportKey) == 0 {
		return
	}
	key := make([]byte, len(exportKey))
	copy(key, exportKey)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opaque = &opaqueEntry{userID: userID, exportKey: key, storedAt: c.now()}
}

// Opaque returns the cached export key for the user, or nil when
// absent, expired, or cached for a different user.
func (c *Cache) Opaque(userID string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.opaque
	if e == nil || e.userID != userID {
		metrics.RecordCacheLookup(types.KekSourceOpaque.String(), false)
		return nil
	}
	if c.now().Sub(e.storedAt) > c.opaqueTTL {
		metrics.RecordCacheLookup(types.KekSourceOpaque.String(), false)
		return nil
	}
	metrics.RecordCacheLookup(types.KekSourceOpaque.String(), true)
	key := make([]byte, len(e.exportKey))
	copy(key, e.exportKey)
	return key
}

// PutWallet caches a wallet signature for the identity. expiresAt is
// the signature's own validity deadline; the zero value means the
// cache TTL alone applies.
func (c *Cache) PutWallet(identity credential.WalletIdentity, signature []byte, expiresAt time.Time) {
	if len(signature) == 0 {
		return
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = &walletEntry{
		identity:  identity,
		signature: sig,
		expiresAt: expiresAt,
		storedAt:  c.now(),
	}
}

// Wallet returns the cached signature for the identity, or nil when
// absent, expired, or cached for a different user, address, or chain.
func (c *Cache) Wallet(identity credential.WalletIdentity) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.wallet
	if e == nil {
		metrics.RecordCacheLookup(types.KekSourceWallet.String(), false)
		return nil
	}
	if e.identity.UserID != identity.UserID ||
		e.identity.ChainID != identity.ChainID ||
		credential.NormalizeWalletAddress(e.identity.Address) != credential.NormalizeWalletAddress(identity.Address) {
		metrics.RecordCacheLookup(types.KekSourceWallet.String(), false)
		return nil
	}

	now := c.now()
	if now.Sub(e.storedAt) > c.walletTTL {
		metrics.RecordCacheLookup(types.KekSourceWallet.String(), false)
		return nil
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		metrics.RecordCacheLookup(types.KekSourceWallet.String(), false)
		return nil
	}

	metrics.RecordCacheLookup(types.KekSourceWallet.String(), true)
	sig := make([]byte, len(e.signature))
	copy(sig, e.signature)
	return sig
}

// ResetAll clears every cached entry as a unit. Call on sign-out.
func (c *Cache) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.passkey != nil && c.passkey.assertion != nil {
		for i := range c.passkey.assertion.PRFOutput {
			c.passkey.assertion.PRFOutput[i] = 0
		}
	}
	if c.opaque != nil {
		for i := range c.opaque.exportKey {
			c.opaque.exportKey[i] = 0
		}
	}
	if c.wallet != nil {
		for i := range c.wallet.signature {
			c.wallet.signature[i] = 0
		}
	}
	c.passkey = nil
	c.opaque = nil
	c.wallet = nil
}
