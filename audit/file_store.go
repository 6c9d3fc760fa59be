// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tessara/auditrail/internal/logging"
	"github.com/tessara/auditrail/internal/metrics"
)

// FileStoreConfig configures the file-based backend.
type FileStoreConfig struct {
	// Dir is the directory holding the audit log files. Created if missing.
	Dir string

	// MaxFileSize is the rotation threshold in bytes. Default 100MB.
	MaxFileSize int64

	// MaxFiles is the number of log files kept after rotation pruning,
	// most recent first. Default 10.
	MaxFiles int

	// Compress gzips each file when it is rotated out.
	Compress bool

	// Encrypt seals each serialized record independently with
	// AES-256-GCM before it is written.
	Encrypt bool

	// EncryptionSecret is the externally supplied key material, required
	// when Encrypt is set. The store never generates its own key: a key
	// born inside one process cannot decrypt the log after a restart.
	EncryptionSecret string
}

const (
	defaultMaxFileSize = 100 * 1024 * 1024
	defaultMaxFiles    = 10

	logFilePrefix = "audit_"
	logFileSuffix = ".log"
	gzipSuffix    = ".gz"
)

// FileStore implements Store on append-only log files with
// size-triggered rotation, optional compression of rotated files, and
// optional per-record encryption. Cleanup operates at file granularity.
type FileStore struct {
	dir         string
	maxFileSize int64
	maxFiles    int
	compress    bool
	cipher      *lineCipher

	mu      sync.Mutex
	current string
}

// NewFileStore opens (or creates) the log directory and prepares the
// first active file.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("log directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}

	s := &FileStore{
		dir:         cfg.Dir,
		maxFileSize: cfg.MaxFileSize,
		maxFiles:    cfg.MaxFiles,
		compress:    cfg.Compress,
	}

	if cfg.Encrypt {
		c, err := newLineCipher(cfg.EncryptionSecret)
		if err != nil {
			return nil, err
		}
		s.cipher = c
	}

	s.current = s.newFilePath()
	return s, nil
}

// newFilePath names a fresh log file after its creation instant.
// Nanosecond precision keeps back-to-back rotations from colliding.
func (s *FileStore) newFilePath() string {
	stamp := time.Now().UTC().Format("20060102_150405.000000000")
	return filepath.Join(s.dir, logFilePrefix+stamp+logFileSuffix)
}

// Store appends one serialized event to the active file, rotating first
// when the active file has reached the size threshold.
func (s *FileStore) Store(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeeded(); err != nil {
		return err
	}

	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	line := string(data)
	if s.cipher != nil {
		line, err = s.cipher.Seal(data)
		if err != nil {
			return fmt.Errorf("encrypt event: %w", err)
		}
	}

	f, err := os.OpenFile(s.current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// rotateIfNeeded rotates the active file once it reaches the threshold:
// the closed file is compressed when enabled, a fresh file becomes
// active, and files beyond the retention count are pruned.
func (s *FileStore) rotateIfNeeded() error {
	info, err := os.Stat(s.current)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat audit file: %w", err)
	}
	if info.Size() < s.maxFileSize {
		return nil
	}

	if s.compress {
		if err := compressFile(s.current); err != nil {
			// Rotation proceeds; the uncompressed file stays readable.
			logging.Warn().Err(err).Str("file", s.current).Msg("Failed to compress rotated audit file")
		}
	}

	s.current = s.newFilePath()
	metrics.RecordFileRotation()
	s.pruneOldFiles()
	return nil
}

// compressFile gzips the file in place and removes the original.
func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for compression: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path + gzipSuffix)
	if err != nil {
		return fmt.Errorf("create compressed file: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove original: %w", err)
	}
	return nil
}

// pruneOldFiles removes log files beyond the retention count, keeping
// the most recently modified.
func (s *FileStore) pruneOldFiles() {
	files, err := s.listLogFiles()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to list audit files for pruning")
		return
	}
	for _, f := range files[min(len(files), s.maxFiles):] {
		if err := os.Remove(f.path); err != nil {
			logging.Warn().Err(err).Str("file", f.path).Msg("Failed to prune old audit file")
		}
	}
}

type logFileInfo struct {
	path    string
	modTime time.Time
}

// listLogFiles returns all log files (plain and compressed), most
// recently modified first.
func (s *FileStore) listLogFiles() ([]logFileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var files []logFileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) {
			continue
		}
		if !strings.HasSuffix(name, logFileSuffix) && !strings.HasSuffix(name, logFileSuffix+gzipSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFileInfo{path: filepath.Join(s.dir, name), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return files, nil
}

// Retrieve reads matching events newest first across all files.
// Individual malformed or undecryptable lines are skipped; a file that
// cannot be opened aborts the read.
func (s *FileStore) Retrieve(ctx context.Context, filter *Filter, limit int) ([]Event, error) {
	files, err := s.listLogFiles()
	if err != nil {
		return nil, err
	}

	var results []Event
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		events, err := s.readFile(f.path)
		if err != nil {
			return nil, err
		}

		// Lines within a file are oldest first; reverse for newest-first.
		for i := len(events) - 1; i >= 0; i-- {
			if !filter.Matches(&events[i]) {
				continue
			}
			results = append(results, events[i])
			if limit > 0 && len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

// Count streams every file and counts matching events without
// materializing results.
func (s *FileStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	files, err := s.listLogFiles()
	if err != nil {
		return 0, err
	}

	var count int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := s.countFile(f.path, filter)
		if err != nil {
			return 0, err
		}
		count += n
	}
	return count, nil
}

// Cleanup deletes whole files whose modification time is before the
// cutoff (file granularity, not per-event) and returns the number of
// files removed. Per-file failures are logged and skipped.
func (s *FileStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listLogFiles()
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, f := range files {
		if !f.modTime.Before(olderThan) {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			logging.Warn().Err(err).Str("file", f.path).Msg("Failed to delete old audit file")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// readFile decodes every readable event in one file, oldest first.
func (s *FileStore) readFile(path string) ([]Event, error) {
	var events []Event
	err := s.scanFile(path, func(e Event) {
		events = append(events, e)
	})
	return events, err
}

// countFile counts matching events in one file.
func (s *FileStore) countFile(path string, filter *Filter) (int64, error) {
	var count int64
	err := s.scanFile(path, func(e Event) {
		if filter.Matches(&e) {
			count++
		}
	})
	return count, err
}

// scanFile reads one log file line by line, decrypting and decoding
// each record. Undecodable lines are skipped so one corrupted record
// never blocks the rest of the file.
func (s *FileStore) scanFile(path string, emit func(Event)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Rotation can compress or prune a file between a reader's
		// directory listing and the open. The reader sees a slightly
		// stale snapshot instead of failing.
		return nil
	}
	if err != nil {
		return fmt.Errorf("open audit file %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, gzipSuffix) {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open compressed audit file %s: %w", path, err)
		}
		defer gr.Close()
		reader = gr
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		data := []byte(line)
		if s.cipher != nil {
			plain, err := s.cipher.Open(line)
			if err != nil {
				metrics.RecordSkipped("file")
				logging.Debug().Str("file", path).Msg("Skipping undecryptable audit record")
				continue
			}
			data = plain
		}

		var event Event
		if err := event.UnmarshalJSON(data); err != nil {
			metrics.RecordSkipped("file")
			logging.Debug().Err(err).Str("file", path).Msg("Skipping malformed audit record")
			continue
		}
		emit(event)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit file %s: %w", path, err)
	}
	return nil
}
