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

// Package config loads vault configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-credvault/pkg/crypto/aead"
)

// Config represents the complete vault configuration
type Config struct {
	Crypto  CryptoConfig  `yaml:"crypto"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
}

// CryptoConfig controls AEAD behavior
type CryptoConfig struct {
	// Algorithm pins the AEAD algorithm for new encryptions.
	// Empty selects by CPU capability (AES-GCM with AES-NI,
	// ChaCha20-Poly1305 otherwise). Existing data always decrypts
	// with the algorithm recorded alongside it.
	Algorithm string `yaml:"algorithm"`
}

// SessionConfig controls session cache lifetimes
type SessionConfig struct {
	PasskeyTTL time.Duration `yaml:"passkey_ttl"`
	OpaqueTTL  time.Duration `yaml:"opaque_ttl"`
	WalletTTL  time.Duration `yaml:"wallet_ttl"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig controls the storage backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Crypto: CryptoConfig{
			Algorithm: "",
		},
		Session: SessionConfig{
			PasskeyTTL: 15 * time.Minute,
			OpaqueTTL:  15 * time.Minute,
			WalletTTL:  24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// Load reads, overrides, and validates a configuration file.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies CREDVAULT_* environment variables on top of
// the file configuration.
func applyEnvOverrides(cfg *Config) {
	if algorithm := os.Getenv("CREDVAULT_AEAD_ALGORITHM"); algorithm != "" {
		cfg.Crypto.Algorithm = algorithm
	}
	if level := os.Getenv("CREDVAULT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CREDVAULT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if backend := os.Getenv("CREDVAULT_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := os.Getenv("CREDVAULT_DATA_DIR"); path != "" {
		cfg.Storage.Path = path
	}
	if ttl := os.Getenv("CREDVAULT_PASSKEY_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Session.PasskeyTTL = d
		}
	}
	if ttl := os.Getenv("CREDVAULT_OPAQUE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Session.OpaqueTTL = d
		}
	}
	if ttl := os.Getenv("CREDVAULT_WALLET_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Session.WalletTTL = d
		}
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Crypto.Algorithm {
	case "", aead.AES256GCM, aead.ChaCha20Poly1305:
	default:
		return fmt.Errorf("crypto.algorithm must be %q or %q, got %q",
			aead.AES256GCM, aead.ChaCha20Poly1305, c.Crypto.Algorithm)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case "", "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or file, got %q", c.Storage.Backend)
	}

	if c.Session.PasskeyTTL < 0 || c.Session.OpaqueTTL < 0 || c.Session.WalletTTL < 0 {
		return fmt.Errorf("session TTLs must not be negative")
	}

	return nil
}
