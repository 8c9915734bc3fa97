package storage

import (
	"context"
	"time"
)

// RunStatus tracks where a benchmark run is in its lifecycle.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	StatusFailed   RunStatus = "failed"
)

// RunRecord is the registry entry of one benchmark run: which workload
// was swept, how large the grid was, and how far the sweep got.
type RunRecord struct {
	// ID is the run's timestamp identifier (YYYYMMDD-HHMMSS), also the
	// name of its raw data directory.
	ID string `json:"id"`

	// Workload is the scalable deployment under test.
	Workload string `json:"workload"`

	GridSize   int       `json:"grid_size"`
	Iterations int       `json:"iterations"`
	Status     RunStatus `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Store is the run registry. The sweep writes a record when it starts,
// updates the iteration count as it progresses, and marks the record
// finished or failed at the end.
type Store interface {
	Put(ctx context.Context, record RunRecord) error
	GetLatest(ctx context.Context, workload string) (RunRecord, bool, error)
	List(ctx context.Context) ([]RunRecord, error)
}
