package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore persists run records as one JSON document next to the
// experiment data. It is the default registry: benchmark runs are rare
// and sequential, so rewriting the whole file per update is fine.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a registry backed by the given JSON file. The
// parent directory is created if needed; the file itself appears on
// the first Put.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage: registry path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create registry dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Put inserts or updates a run record and rewrites the registry file.
func (s *FileStore) Put(ctx context.Context, record RunRecord) error {
	if record.ID == "" || record.Workload == "" {
		return errors.New("storage: run record needs an ID and a workload")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range records {
		if r.ID == record.ID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return s.save(records)
}

// GetLatest returns the most recently started run of a workload.
func (s *FileStore) GetLatest(ctx context.Context, workload string) (RunRecord, bool, error) {
	select {
	case <-ctx.Done():
		return RunRecord{}, false, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return RunRecord{}, false, err
	}

	var latest RunRecord
	found := false
	for _, r := range records {
		if r.Workload != workload {
			continue
		}
		if !found || r.StartedAt.After(latest.StartedAt) {
			latest = r
			found = true
		}
	}
	return latest, found, nil
}

// List returns every stored record ordered by run ID.
func (s *FileStore) List(ctx context.Context) ([]RunRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func (s *FileStore) load() ([]RunRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read registry: %w", err)
	}

	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("storage: decode registry: %w", err)
	}
	return records, nil
}

func (s *FileStore) save(records []RunRecord) error {
	sortRecords(records)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode registry: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write registry: %w", err)
	}
	return nil
}

func sortRecords(records []RunRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
