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
	"fmt"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// WalletIdentity names the wallet a credential binds to.
type WalletIdentity struct {
	// UserID is the account the wallet is linked to.
	UserID string

	// ChainID is the EVM chain identifier.
	ChainID uint64

	// Address is the wallet address; normalized before use so case
	// and 0x-prefix variants are equivalent.
	Address string
}

// WalletSigner produces a structured signature over a message. The
// private key stays inside the external wallet; a user-declined
// signing prompt must return ErrCeremonyCancelled.
type WalletSigner interface {
	SignMessage(ctx context.Context, message string) ([]byte, error)
}

// Wallet adapts a blockchain wallet signature to the Credential
// interface. The signed message is fully deterministic, with no
// timestamp and no nonce, so the same wallet reproduces
// byte-identical material on every re-signing. That determinism is
// what makes KEK recovery possible after the cached signature expires,
// without re-registering a wrapper.
type Wallet struct {
	identity WalletIdentity
	signer   WalletSigner

	mu        sync.Mutex
	signature []byte
}

var _ Credential = (*Wallet)(nil)

// NewWallet creates a wallet credential adapter backed by a signer.
func NewWallet(identity WalletIdentity, signer WalletSigner) (*Wallet, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, ErrProverRequired
	}
	return &Wallet{identity: identity, signer: signer}, nil
}

// NewWalletFromSignature creates a wallet credential adapter from a
// signature already in hand (e.g. from the session cache).
func NewWalletFromSignature(identity WalletIdentity, signature []byte) (*Wallet, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrInvalidWalletIdentity)
	}
	return &Wallet{identity: identity, signature: cloneBytes(signature)}, nil
}

// WalletCredentialID returns the stable identifier for a wallet
// credential: "wallet:" + chain ID + ":" + normalized address.
func WalletCredentialID(chainID uint64, address string) string {
	return fmt.Sprintf("wallet:%d:%s", chainID, NormalizeWalletAddress(address))
}

// NormalizeWalletAddress lowercases an address and ensures a single
// 0x prefix, so "ABC...", "0xabc..." and "abc..." are equivalent.
func NormalizeWalletAddress(address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	addr = strings.TrimPrefix(addr, "0x")
	return "0x" + addr
}

// SigningMessage builds the deterministic message a wallet signs to
// derive vault key material. The message intentionally carries no
// timestamp and no nonce: re-signing it must reproduce identical
// bytes, or wrappers created from the signature become unrecoverable
// once the session cache expires.
func SigningMessage(identity WalletIdentity) string {
	return fmt.Sprintf(
		"credvault key derivation\n"+
			"address: %s\n"+
			"chain-id: %d\n"+
			"user: %s\n"+
			"version: 1",
		NormalizeWalletAddress(identity.Address), identity.ChainID, identity.UserID)
}

// Source returns types.KekSourceWallet.
func (w *Wallet) Source() types.KekSource {
	return types.KekSourceWallet
}

// Identity returns the wallet identity this credential binds to.
func (w *Wallet) Identity() WalletIdentity {
	return w.identity
}

// Matches reports whether credentialID names this wallet.
func (w *Wallet) Matches(credentialID string) bool {
	return credentialID == WalletCredentialID(w.identity.ChainID, w.identity.Address)
}

// ID returns the stable wallet credential identifier.
func (w *Wallet) ID(ctx context.Context) (string, error) {
	return WalletCredentialID(w.identity.ChainID, w.identity.Address), nil
}

// Material returns the signature bytes over the deterministic signing
// message, prompting the wallet at most once per adapter. prfSalt is
// ignored; wallet material is not salted per secret.
func (w *Wallet) Material(ctx context.Context, prfSalt []byte) ([]byte, error) {
	w.mu.Lock()
	if w.signature != nil {
		sig := cloneBytes(w.signature)
		w.mu.Unlock()
		return sig, nil
	}
	w.mu.Unlock()

	sig, err := w.signer.SignMessage(ctx, SigningMessage(w.identity))
	if err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: signer returned empty signature", ErrInvalidWalletIdentity)
	}

	w.mu.Lock()
	w.signature = cloneBytes(sig)
	w.mu.Unlock()

	return cloneBytes(sig), nil
}

func (i WalletIdentity) validate() error {
	if strings.TrimSpace(i.Address) == "" || i.ChainID == 0 {
		return ErrInvalidWalletIdentity
	}
	if i.UserID == "" {
		return ErrInvalidUserID
	}
	return nil
}
