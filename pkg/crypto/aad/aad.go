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

// Package aad provides deterministic, injective encoding of context
// strings into additional authenticated data for AEAD operations.
//
// Naive concatenation of variable-length strings is ambiguous:
// ["ab","cd"] and ["abc","d"] would produce identical bytes, and an
// AAD collision would let an attacker splice a wrapper across secrets,
// credentials, or users. Each part is therefore prefixed with its
// 4-byte big-endian length, making the encoding collision-free.
//
// The encoding is write-only; no decoder exists or is needed.
package aad

import "encoding/binary"

// Encode encodes the given parts into authenticated-data bytes.
// Each part is prefixed with a 4-byte big-endian length and the
// results are concatenated in order. The same parts in the same
// order always produce the same bytes, and no two distinct part
// sequences produce equal output.
func Encode(parts ...string) []byte {
	size := 0
	for _, part := range parts {
		size += 4 + len(part)
	}

	out := make([]byte, 0, size)
	var length [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(length[:], uint32(len(part)))
		out = append(out, length[:]...)
		out = append(out, part...)
	}
	return out
}
