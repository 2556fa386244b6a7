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

package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jeremyhahn/go-credvault/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credvault/pkg/session"
	"github.com/jeremyhahn/go-credvault/pkg/storage"
	"github.com/jeremyhahn/go-credvault/pkg/storage/file"
	"github.com/jeremyhahn/go-credvault/pkg/vault"
)

// Backend constructs the storage backend named by the configuration.
func (c *Config) Backend() (storage.Backend, error) {
	switch c.Storage.Backend {
	case "", "memory":
		return storage.NewMemory(), nil
	case "file":
		return file.New(c.Storage.Path)
	default:
		return nil, fmt.Errorf("storage.backend must be memory or file, got %q", c.Storage.Backend)
	}
}

// VaultOptions maps the crypto section onto vault constructor options.
// The logger option is applied here too so a configured vault logs the
// way the configuration says.
func (c *Config) VaultOptions() []vault.Option {
	opts := []vault.Option{vault.WithLogger(c.Logger())}
	if c.Crypto.Algorithm != "" {
		opts = append(opts, vault.WithAlgorithm(c.Crypto.Algorithm))
	}
	return opts
}

// SessionOptions maps the session TTLs onto cache options. Zero TTLs
// keep the cache defaults.
func (c *Config) SessionOptions() []session.Option {
	var opts []session.Option
	if c.Session.PasskeyTTL > 0 {
		opts = append(opts, session.WithPasskeyTTL(c.Session.PasskeyTTL))
	}
	if c.Session.OpaqueTTL > 0 {
		opts = append(opts, session.WithOpaqueTTL(c.Session.OpaqueTTL))
	}
	if c.Session.WalletTTL > 0 {
		opts = append(opts, session.WithWalletTTL(c.Session.WalletTTL))
	}
	return opts
}

// Logger builds a structured logger from the logging section. Text and
// JSON handlers both write to stderr.
func (c *Config) Logger() logger.Logger {
	level := parseLevel(c.Logging.Level)
	if c.Logging.Format == "json" {
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slogLevel(level),
		})
		return logger.NewSlogAdapter(&logger.SlogConfig{Handler: handler})
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{Level: level})
}

func parseLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func slogLevel(level logger.Level) slog.Level {
	switch level {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError, logger.LevelFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
