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

// Package envelope serializes plaintext before encryption and
// deserializes it after decryption. Two wire formats are supported:
// JSON for structured documents and binary for raw key material.
//
// The format used at creation is recorded in the secret's metadata and
// must match on both sides. A mismatch is treated as a tamper signal
// and fails closed; it is never silently coerced.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Format identifies the serialization scheme applied to plaintext
// before encryption.
type Format string

const (
	// FormatJSON marshals any JSON-serializable value.
	FormatJSON Format = "json"

	// FormatBinary passes raw bytes through unchanged. Serialize
	// accepts only []byte and Deserialize only *[]byte.
	FormatBinary Format = "binary"
)

var (
	// ErrUnsupportedFormat indicates an unknown envelope format.
	ErrUnsupportedFormat = errors.New("envelope: unsupported format")

	// ErrTypeMismatch indicates a value incompatible with the format,
	// e.g. a non-[]byte value with FormatBinary.
	ErrTypeMismatch = errors.New("envelope: value type does not match format")
)

// String returns the string representation of the format
func (f Format) String() string {
	return string(f)
}

// Valid reports whether the format is known.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatBinary
}

// Serialize encodes v according to the format.
func Serialize(v any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("envelope: json serialization failed: %w", err)
		}
		return data, nil
	case FormatBinary:
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: binary format requires []byte, got %T", ErrTypeMismatch, v)
		}
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Deserialize decodes data into out according to the format.
func Deserialize(data []byte, format Format, out any) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("envelope: json deserialization failed: %w", err)
		}
		return nil
	case FormatBinary:
		raw, ok := out.(*[]byte)
		if !ok {
			return fmt.Errorf("%w: binary format requires *[]byte, got %T", ErrTypeMismatch, out)
		}
		*raw = make([]byte, len(data))
		copy(*raw, data)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
