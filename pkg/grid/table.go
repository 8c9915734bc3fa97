package grid

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Table columns of a persisted variation table.
var tableHeader = []string{"iteration", "cpu", "memory", "pods"}

// WriteTable persists the flattened grid as a CSV audit table, one row
// per combination with a 1-based iteration index.
//
// Writes use create-if-absent semantics: if the file already exists the
// write is skipped with a warning so a rerun never clobbers the table a
// previous experiment recorded.
func (g *Grid) WriteTable(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			logger.Warn("variation table already exists, keeping previous contents", "path", path)
			return nil
		}
		return fmt.Errorf("grid: create variation table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tableHeader); err != nil {
		return fmt.Errorf("grid: write header: %w", err)
	}
	for i, p := range g.Points {
		rec := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(p.CPUMillis),
			strconv.Itoa(p.MemoryMiB),
			strconv.Itoa(p.Replicas),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("grid: write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadTable loads a variation table written by WriteTable. The returned
// slice is indexed by iteration-1.
func ReadTable(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("grid: open variation table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("grid: read variation table: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("grid: variation table %s is empty", path)
	}

	points := make([]Point, 0, len(records)-1)
	for n, rec := range records[1:] {
		if len(rec) != len(tableHeader) {
			return nil, fmt.Errorf("grid: row %d has %d columns, want %d", n+1, len(rec), len(tableHeader))
		}
		iter, err := strconv.Atoi(rec[0])
		if err != nil || iter != n+1 {
			return nil, fmt.Errorf("grid: row %d has iteration %q, want %d", n+1, rec[0], n+1)
		}
		cpu, err1 := strconv.Atoi(rec[1])
		mem, err2 := strconv.Atoi(rec[2])
		pods, err3 := strconv.Atoi(rec[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("grid: row %d has non-integer values", n+1)
		}
		points = append(points, Point{CPUMillis: cpu, MemoryMiB: mem, Replicas: pods})
	}
	return points, nil
}
