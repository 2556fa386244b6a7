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

package aead

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Algorithm names for the supported AEAD ciphers. The name travels in
// the wrapper record and EncryptedData so decryption always selects
// the cipher the data was produced with, regardless of which CPU the
// unlock happens on.
const (
	// AES256GCM is AES-256 in Galois/Counter Mode.
	// Best performance on CPUs with AES-NI.
	AES256GCM = "aes256-gcm"

	// ChaCha20Poly1305 is the ChaCha20-Poly1305 AEAD (RFC 8439).
	// Best performance on CPUs without AES-NI and constant-time in software.
	ChaCha20Poly1305 = "chacha20-poly1305"
)

// HasAESNI returns true if the CPU has hardware AES acceleration.
//
// Supported architectures:
//   - amd64: Checks X86.HasAES
//   - arm64: Checks ARM64.HasAES
//   - Other architectures return false
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal selects the AEAD algorithm for newly encrypted data
// based on hardware capabilities: AES-256-GCM when the CPU has AES-NI,
// ChaCha20-Poly1305 otherwise. Existing data always decrypts with the
// algorithm recorded alongside it.
func SelectOptimal() string {
	if HasAESNI() {
		return AES256GCM
	}
	return ChaCha20Poly1305
}
