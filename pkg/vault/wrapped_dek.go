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
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-credvault/pkg/types"
)

// wrappedDEK is the wire format of a wrapped data-encryption key: a
// small self-describing record so unwrapping selects the right cipher
// regardless of which device or algorithm produced the wrapper.
type wrappedDEK struct {
	Algorithm  string `json:"algorithm"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// EncodeWrappedDEK serializes an encrypted DEK into the wrapper wire
// format: {"algorithm", "nonce"(base64), "ciphertext"(base64)}.
func EncodeWrappedDEK(data *types.EncryptedData) (string, error) {
	if data == nil || len(data.Nonce) == 0 || len(data.Ciphertext) == 0 {
		return "", fmt.Errorf("vault: cannot encode empty wrapped DEK")
	}
	out, err := json.Marshal(&wrappedDEK{
		Algorithm:  data.Algorithm,
		Nonce:      base64.StdEncoding.EncodeToString(data.Nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(data.Ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("vault: failed to encode wrapped DEK: %w", err)
	}
	return string(out), nil
}

// DecodeWrappedDEK parses the wrapper wire format. A malformed record
// is a tamper signal and returns ErrIntegrity.
func DecodeWrappedDEK(s string) (*types.EncryptedData, error) {
	var w wrappedDEK
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, ErrIntegrity
	}

	nonce, err := base64.StdEncoding.DecodeString(w.Nonce)
	if err != nil {
		return nil, ErrIntegrity
	}
	ciphertext, err := base64.StdEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return nil, ErrIntegrity
	}
	if w.Algorithm == "" || len(nonce) == 0 || len(ciphertext) == 0 {
		return nil, ErrIntegrity
	}

	return &types.EncryptedData{
		Algorithm:  w.Algorithm,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}
