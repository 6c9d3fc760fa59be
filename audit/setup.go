// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tessara/auditrail/config"
	"github.com/tessara/auditrail/internal/logging"
)

// NewFromConfig builds a ready-to-use Logger from a resolved
// configuration: it initializes the diagnostic logger, opens the
// configured storage backend and wires the delivery pipeline. A nil
// cfg loads configuration from the default file paths and AUDITRAIL_*
// environment variables. A store opened here is owned by the logger
// and released by Shutdown.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Logger, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := NewLogger(store, &Config{
		Async:         cfg.Pipeline.Async,
		QueueSize:     cfg.Pipeline.QueueSize,
		DrainTimeout:  cfg.Pipeline.DrainTimeout,
		RetentionDays: cfg.Pipeline.RetentionDays,
	})
	logger.closer = closer
	return logger, nil
}

// openStore constructs the backend selected by cfg.Storage.Backend.
// The returned closer is non-nil only when the store holds a resource
// the logger must release on shutdown.
func openStore(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case "file":
		store, err := NewFileStore(FileStoreConfig{
			Dir:              cfg.Storage.File.Dir,
			MaxFileSize:      cfg.Storage.File.MaxFileSize,
			MaxFiles:         cfg.Storage.File.MaxFiles,
			Compress:         cfg.Storage.File.Compress,
			Encrypt:          cfg.Encryption.Enabled,
			EncryptionSecret: cfg.Encryption.Secret,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil, nil

	case "duckdb":
		db, err := sql.Open("duckdb", cfg.Storage.DuckDB.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open duckdb database: %w", err)
		}
		store := NewDuckDBStore(db)
		if err := store.CreateTable(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("initialize duckdb schema: %w", err)
		}
		return store, store, nil

	case "memory":
		return NewMemoryStore(cfg.Storage.Memory.MaxEvents), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
