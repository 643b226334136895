package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/receiptkeeper/internal/filex"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

// FileStore keeps the snapshot as a single JSON array on disk.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// OpenFile returns a FileStore for path. The file is created on first Save.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path must not be empty")
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Load reads the snapshot. A missing file is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	records := []models.Record{}
	if len(b) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return records, nil
}

// Save writes records to a temporary file and renames it over the snapshot.
func (s *FileStore) Save(ctx context.Context, records []models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if records == nil {
		records = []models.Record{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return filex.WriteFileAtomic(s.path, b, 0o600)
}

func (s *FileStore) Close() error { return nil }
