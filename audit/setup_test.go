// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tessara/auditrail/config"
)

// testConfig returns a valid configuration with a synchronous pipeline
// and the given storage backend.
func testConfig(backend string) *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{
			Level:  "error",
			Format: "json",
		},
		Pipeline: config.PipelineConfig{
			Async:           false,
			QueueSize:       100,
			DrainTimeout:    time.Second,
			RetentionDays:   30,
			CleanupInterval: time.Hour,
		},
		Storage: config.StorageConfig{
			Backend: backend,
			File: config.FileStorageConfig{
				MaxFileSize: 1 << 20,
				MaxFiles:    5,
			},
			Memory: config.MemoryStorageConfig{
				MaxEvents: 1000,
			},
		},
	}
}

func TestNewFromConfig_MemoryBackend(t *testing.T) {
	ctx := context.Background()

	logger, err := NewFromConfig(ctx, testConfig("memory"))
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer logger.Shutdown(ctx)

	id := logger.LogEvent(LevelInfo, CategoryDataAccess, ActionRead, "alice", "records", "success", "read records")
	if id == "" {
		t.Fatal("expected an event ID")
	}

	events, err := logger.EventsByActor(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("EventsByActor: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestNewFromConfig_FileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := testConfig("file")
	cfg.Storage.File.Dir = dir

	logger, err := NewFromConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	logger.LogEvent(LevelInfo, CategoryAuthentication, ActionLogin, "bob", "portal", "success", "login")

	events, err := logger.Events(ctx, nil, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "audit_") {
			found = true
		}
	}
	if !found {
		t.Errorf("no audit log file written under %s", dir)
	}
}

func TestNewFromConfig_FileBackendEncrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := testConfig("file")
	cfg.Storage.File.Dir = dir
	cfg.Encryption.Enabled = true
	cfg.Encryption.Secret = "correct horse battery staple"

	logger, err := NewFromConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer logger.Shutdown(ctx)

	logger.LogEvent(LevelInfo, CategoryDataAccess, ActionRead, "carol", "vault", "success", "read vault")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if strings.Contains(string(data), "carol") {
			t.Errorf("plaintext actor found in %s", e.Name())
		}
	}

	events, err := logger.Events(ctx, nil, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Actor != "carol" {
		t.Fatalf("round trip through encrypted store failed: %+v", events)
	}
}

func TestNewFromConfig_RejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "etcd" }},
		{"file backend without dir", func(c *config.Config) {}},
		{"encryption without secret", func(c *config.Config) {
			c.Storage.File.Dir = t.TempDir()
			c.Encryption.Enabled = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("file")
			tt.mutate(cfg)
			if _, err := NewFromConfig(ctx, cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// closeRecorder counts Close calls on a wrapped store.
type closeRecorder struct {
	*MemoryStore
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestShutdown_ReleasesOwnedStore(t *testing.T) {
	ctx := context.Background()

	rec := &closeRecorder{MemoryStore: NewMemoryStore(100)}
	logger := NewLogger(rec, syncConfig())
	logger.closer = rec

	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if rec.closed != 1 {
		t.Errorf("store closed %d times, want 1", rec.closed)
	}
}

func TestShutdown_WithoutOwnedStore(t *testing.T) {
	logger := NewLogger(NewMemoryStore(100), syncConfig())
	if err := logger.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
