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

package kdf

import "errors"

var (
	// ErrInvalidMaterial indicates nil or empty input key material.
	ErrInvalidMaterial = errors.New("kdf: invalid input key material")

	// ErrUnknownSource indicates an unknown KEK source family.
	ErrUnknownSource = errors.New("kdf: unknown KEK source")

	// ErrDestroyed indicates the KEK handle has been zeroized.
	ErrDestroyed = errors.New("kdf: key handle destroyed")
)
