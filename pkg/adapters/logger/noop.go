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

package logger

// Noop is a Logger that discards everything. It is the default for
// components constructed without an explicit logger.
type Noop struct{}

// NewNoop creates a logger that discards all output
func NewNoop() *Noop {
	return &Noop{}
}

// Debug discards the message
func (n *Noop) Debug(msg string, fields ...Field) {}

// Info discards the message
func (n *Noop) Info(msg string, fields ...Field) {}

// Warn discards the message
func (n *Noop) Warn(msg string, fields ...Field) {}

// Error discards the message
func (n *Noop) Error(msg string, fields ...Field) {}

// Fatal discards the message without exiting
func (n *Noop) Fatal(msg string, fields ...Field) {}

// With returns the same noop logger
func (n *Noop) With(fields ...Field) Logger { return n }

// WithError returns the same noop logger
func (n *Noop) WithError(err error) Logger { return n }
