// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

// Package config loads and validates Auditrail configuration.
//
// Configuration is layered with clear precedence: environment variables
// override the optional YAML config file, which overrides built-in
// defaults. Struct-level constraints are enforced with validator tags,
// cross-field rules (backend-specific requirements, encryption secrets)
// with explicit checks.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for an Auditrail deployment.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Storage    StorageConfig    `koanf:"storage"`
	Encryption EncryptionConfig `koanf:"encryption"`
}

// LoggingConfig controls the internal diagnostic logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// PipelineConfig controls event delivery.
type PipelineConfig struct {
	// Async enables the background delivery queue. When false every
	// event is written to the store before LogEvent returns.
	Async bool `koanf:"async"`

	// QueueSize is the capacity of the async delivery queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// DrainTimeout bounds how long Shutdown waits for queued events.
	DrainTimeout time.Duration `koanf:"drain_timeout" validate:"min=0"`

	// RetentionDays is the default retention period for cleanup.
	// 2555 days covers the seven year requirement common to financial
	// compliance regimes.
	RetentionDays int `koanf:"retention_days" validate:"min=1"`

	// CleanupInterval is how often the periodic cleanup routine runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"min=0"`
}

// StorageConfig selects and configures the audit store backend.
type StorageConfig struct {
	// Backend is one of "file", "duckdb" or "memory".
	Backend string `koanf:"backend" validate:"oneof=file duckdb memory"`

	File   FileStorageConfig   `koanf:"file"`
	DuckDB DuckDBStorageConfig `koanf:"duckdb"`
	Memory MemoryStorageConfig `koanf:"memory"`
}

// FileStorageConfig configures the append-only file backend.
type FileStorageConfig struct {
	Dir         string `koanf:"dir"`
	MaxFileSize int64  `koanf:"max_file_size" validate:"min=0"`
	MaxFiles    int    `koanf:"max_files" validate:"min=0"`
	Compress    bool   `koanf:"compress"`
}

// DuckDBStorageConfig configures the indexed DuckDB backend.
type DuckDBStorageConfig struct {
	Path string `koanf:"path"`
}

// MemoryStorageConfig configures the in-memory backend.
type MemoryStorageConfig struct {
	MaxEvents int `koanf:"max_events" validate:"min=0"`
}

// EncryptionConfig controls at-rest encryption for the file backend.
// The secret is never generated automatically; losing it makes stored
// records unreadable, so it must be provisioned deliberately.
type EncryptionConfig struct {
	Enabled bool   `koanf:"enabled"`
	Secret  string `koanf:"secret"`
}

// defaultConfig returns a Config with all default values applied.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Pipeline: PipelineConfig{
			Async:           true,
			QueueSize:       10000,
			DrainTimeout:    5 * time.Second,
			RetentionDays:   2555,
			CleanupInterval: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend: "file",
			File: FileStorageConfig{
				Dir:         "/var/log/auditrail",
				MaxFileSize: 100 << 20, // 100MB
				MaxFiles:    10,
				Compress:    true,
			},
			DuckDB: DuckDBStorageConfig{
				Path: "/data/auditrail.duckdb",
			},
			Memory: MemoryStorageConfig{
				MaxEvents: 100000,
			},
		},
		Encryption: EncryptionConfig{
			Enabled: false,
			Secret:  "",
		},
	}
}

var validate = validator.New()

// Validate checks tag-level constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid configuration: field %s failed %q constraint", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.File.Dir == "" {
			return errors.New("storage.file.dir is required for the file backend")
		}
	case "duckdb":
		if c.Storage.DuckDB.Path == "" {
			return errors.New("storage.duckdb.path is required for the duckdb backend")
		}
	}

	if c.Encryption.Enabled {
		if c.Encryption.Secret == "" {
			return errors.New("encryption.secret is required when encryption is enabled")
		}
		if c.Storage.Backend != "file" {
			return errors.New("encryption is only supported by the file backend")
		}
	}

	return nil
}
