package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps run records in a map, one history per workload.
// It is safe for concurrent use and is the registry of choice for
// tests and single-process runs without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]RunRecord // workload -> records, append order
}

// NewMemoryStore creates an empty in-memory run registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]RunRecord)}
}

// Put inserts or updates a run record. Records with the same ID are
// replaced in place so the sweep can update progress as it goes.
func (s *MemoryStore) Put(ctx context.Context, record RunRecord) error {
	if record.ID == "" || record.Workload == "" {
		return fmt.Errorf("storage: run record needs an ID and a workload")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.records[record.Workload]
	for i, r := range history {
		if r.ID == record.ID {
			history[i] = record
			return nil
		}
	}
	s.records[record.Workload] = append(history, record)
	return nil
}

// GetLatest returns the most recently started run of a workload.
func (s *MemoryStore) GetLatest(ctx context.Context, workload string) (RunRecord, bool, error) {
	select {
	case <-ctx.Done():
		return RunRecord{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.records[workload]
	if len(history) == 0 {
		return RunRecord{}, false, nil
	}

	latest := history[0]
	for _, r := range history[1:] {
		if r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	return latest, true, nil
}

// List returns every stored record ordered by run ID.
func (s *MemoryStore) List(ctx context.Context) ([]RunRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RunRecord
	for _, history := range s.records {
		out = append(out, history...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored records, mainly for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, history := range s.records {
		n += len(history)
	}
	return n
}
