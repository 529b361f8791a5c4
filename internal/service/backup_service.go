package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"leetee/internal/logger"
	"leetee/internal/state"
	"leetee/internal/storage"
)

// BackupVersion tags the backup file format.
const BackupVersion = "1.0"

// BackupData is the complete contents of the learner store.
type BackupData struct {
	Version    string        `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Backend    string        `json:"backend"`
	Entries    []BackupEntry `json:"entries"`
}

// BackupEntry is one stored key and its raw value.
type BackupEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// BackupService handles export and restore of learner state.
type BackupService struct {
	kv      storage.KV
	backend string
	log     *logger.Logger
	now     func() time.Time
}

// NewBackupService creates a new backup service. backend is recorded in
// exports for reference only.
func NewBackupService(kv storage.KV, backend string, log *logger.Logger) *BackupService {
	return &BackupService{
		kv:      kv,
		backend: backend,
		log:     logger.OrNop(log).With("component", "backup"),
		now:     time.Now,
	}
}

func (s *BackupService) prefix() string {
	return state.KeyPrefix + ":"
}

// Export writes every learner key to w as indented JSON and returns the
// number of entries.
func (s *BackupService) Export(ctx context.Context, w io.Writer) (int, error) {
	keys, err := s.kv.Keys(ctx, s.prefix())
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: s.now().UTC(),
		Backend:    s.backend,
		Entries:    make([]BackupEntry, 0, len(keys)),
	}
	for _, key := range keys {
		value, err := s.kv.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !json.Valid([]byte(value)) {
			s.log.Warn("skipping non-JSON value", "key", key)
			continue
		}
		backup.Entries = append(backup.Entries, BackupEntry{Key: key, Value: json.RawMessage(value)})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	s.log.Info("store exported", "entries", len(backup.Entries))
	return len(backup.Entries), nil
}

// ExportFile writes a backup to outputPath.
func (s *BackupService) ExportFile(ctx context.Context, outputPath string) (int, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := s.Export(ctx, file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	return n, err
}

// Import restores entries from r. With clearData set, existing learner keys
// are removed first. Returns the number of entries written.
func (s *BackupService) Import(ctx context.Context, r io.Reader, clearData bool) (int, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return 0, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return 0, fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.log.Info("importing backup", "version", backup.Version, "exported_at", backup.ExportedAt, "entries", len(backup.Entries))

	if clearData {
		if err := s.Clear(ctx); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, e := range backup.Entries {
		if !strings.HasPrefix(e.Key, s.prefix()) {
			s.log.Warn("skipping foreign key", "key", e.Key)
			continue
		}
		if err := s.kv.Set(ctx, e.Key, string(e.Value)); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", e.Key, err)
		}
		n++
	}
	s.log.Info("import completed", "entries", n)
	return n, nil
}

// ImportFile restores a backup from inputPath.
func (s *BackupService) ImportFile(ctx context.Context, inputPath string, clearData bool) (int, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file, clearData)
}

// Clear deletes every learner key.
func (s *BackupService) Clear(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, s.prefix())
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	s.log.Info("store cleared", "entries", len(keys))
	return nil
}
