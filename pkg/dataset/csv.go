package dataset

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
)

// ReadCSV loads a frame from a CSV file. The first record is the header.
func ReadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s has no header", path)
	}

	frame := New(records[0]...)
	for _, rec := range records[1:] {
		row := Row{}
		for i, cell := range rec {
			if i >= len(frame.Columns) {
				break
			}
			row[frame.Columns[i]] = cell
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// WriteCSV persists the frame with create-if-absent semantics: an
// existing file is left untouched and logged as a warning, so reruns of
// the pipeline never overwrite prior experiment data.
func (f *Frame) WriteCSV(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			logger.Warn("output file already exists, keeping previous contents", "path", path)
			return nil
		}
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(f.Columns); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}
	rec := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, col := range f.Columns {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("dataset: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
