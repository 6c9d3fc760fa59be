// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"auditrail.yaml",
	"auditrail.yml",
	"/etc/auditrail/config.yaml",
	"/etc/auditrail/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the
// config file path.
const ConfigPathEnvVar = "AUDITRAIL_CONFIG"

// envPrefix namespaces Auditrail environment variables.
const envPrefix = "AUDITRAIL_"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > File > Defaults. The result is validated before
// being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// AUDITRAIL_STORAGE_BACKEND -> storage.backend
	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc transforms environment variable names to koanf
// config paths. Compound leaf names do not map cleanly with a plain
// underscore-to-dot substitution, so known variables are listed
// explicitly and unknown ones are skipped.
//
// Examples:
//   - AUDITRAIL_LOG_LEVEL -> logging.level
//   - AUDITRAIL_STORAGE_BACKEND -> storage.backend
//   - AUDITRAIL_QUEUE_SIZE -> pipeline.queue_size
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Pipeline mappings
		"async":            "pipeline.async",
		"queue_size":       "pipeline.queue_size",
		"drain_timeout":    "pipeline.drain_timeout",
		"retention_days":   "pipeline.retention_days",
		"cleanup_interval": "pipeline.cleanup_interval",

		// Storage mappings
		"storage_backend":   "storage.backend",
		"file_dir":          "storage.file.dir",
		"file_max_size":     "storage.file.max_file_size",
		"file_max_files":    "storage.file.max_files",
		"file_compress":     "storage.file.compress",
		"duckdb_path":       "storage.duckdb.path",
		"memory_max_events": "storage.memory.max_events",

		// Encryption mappings
		"encryption_enabled": "encryption.enabled",
		"encryption_secret":  "encryption.secret",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// cannot pollute the configuration.
	return ""
}
