// Package dataset reshapes raw per-iteration metric exports into the
// filtered, row-per-(iteration, pod) table the model trainer consumes.
//
// The package provides a small labeled Frame for tabular data plus the
// pivot/merge/aggregate operations the filtering pipeline needs. Cells
// are kept as strings (the CSV-native representation) and parsed to
// float64 only where an operation is numeric.
package dataset

import (
	"sort"
	"strconv"
	"strings"
)

// Row is a single observation keyed by column name.
type Row map[string]string

// Float parses a cell as float64. The second return is false when the
// cell is absent or empty.
func (r Row) Float(col string) (float64, bool) {
	s, ok := r[col]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Frame is an ordered collection of rows sharing a column set.
type Frame struct {
	Columns []string
	Rows    []Row
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// Append adds a row. Columns not yet known to the frame are appended to
// the column set in first-seen order.
func (f *Frame) Append(row Row) {
	for col := range row {
		if !f.hasColumn(col) {
			f.Columns = append(f.Columns, col)
		}
	}
	f.Rows = append(f.Rows, row)
}

func (f *Frame) hasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Concat stacks frames vertically. The column set is the union of all
// input columns, ordered by first occurrence.
func Concat(frames ...*Frame) *Frame {
	out := &Frame{}
	for _, fr := range frames {
		if fr == nil {
			continue
		}
		for _, col := range fr.Columns {
			if !out.hasColumn(col) {
				out.Columns = append(out.Columns, col)
			}
		}
		out.Rows = append(out.Rows, fr.Rows...)
	}
	return out
}

// WithConstant returns a copy of the frame with a new column holding the
// same value in every row, inserted at the front.
func (f *Frame) WithConstant(name, value string) *Frame {
	out := &Frame{Columns: append([]string{name}, f.Columns...)}
	for _, r := range f.Rows {
		nr := cloneRow(r)
		nr[name] = value
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Filter returns the rows for which keep is true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for _, r := range f.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Transform rewrites one column in place through fn.
func (f *Frame) Transform(col string, fn func(string) string) *Frame {
	for _, r := range f.Rows {
		if v, ok := r[col]; ok {
			r[col] = fn(v)
		}
	}
	return f
}

// Pivot reshapes a long frame into a wide one: one output row per
// distinct index-key, one column per distinct value of keyCol, cells
// from valueCol. Duplicate observations for the same (index, key) pair
// are averaged.
func (f *Frame) Pivot(index []string, keyCol, valueCol string) (*Frame, error) {
	type cellAcc struct {
		sum   float64
		count int
	}

	groups := make(map[string]Row)      // index key -> index column values
	cells := make(map[string]*cellAcc)  // index key + metric -> accumulator
	metricSet := make(map[string]bool)  // distinct key column values
	var order []string                  // index keys in first-seen order

	for _, r := range f.Rows {
		metric := r[keyCol]
		if metric == "" {
			continue
		}
		idxKey := joinKey(r, index)
		if _, seen := groups[idxKey]; !seen {
			g := Row{}
			for _, c := range index {
				g[c] = r[c]
			}
			groups[idxKey] = g
			order = append(order, idxKey)
		}
		metricSet[metric] = true

		v, ok := r.Float(valueCol)
		if !ok {
			continue
		}
		ck := idxKey + "\x00" + metric
		acc := cells[ck]
		if acc == nil {
			acc = &cellAcc{}
			cells[ck] = acc
		}
		acc.sum += v
		acc.count++
	}

	metrics := make([]string, 0, len(metricSet))
	for m := range metricSet {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	out := New(append(append([]string(nil), index...), metrics...)...)
	for _, idxKey := range order {
		row := cloneRow(groups[idxKey])
		for _, m := range metrics {
			if acc, ok := cells[idxKey+"\x00"+m]; ok && acc.count > 0 {
				row[m] = formatFloat(acc.sum / float64(acc.count))
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Merge left-joins right onto f using the given key columns. Rows of f
// with no match keep empty cells for the right-only columns.
func (f *Frame) Merge(right *Frame, on []string) *Frame {
	lookup := make(map[string]Row, len(right.Rows))
	for _, r := range right.Rows {
		k := joinKey(r, on)
		if _, dup := lookup[k]; !dup {
			lookup[k] = r
		}
	}

	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for _, col := range right.Columns {
		if !out.hasColumn(col) {
			out.Columns = append(out.Columns, col)
		}
	}
	for _, l := range f.Rows {
		row := cloneRow(l)
		if match, ok := lookup[joinKey(l, on)]; ok {
			for col, v := range match {
				if !contains(on, col) {
					row[col] = v
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Drop removes columns from the frame.
func (f *Frame) Drop(cols ...string) *Frame {
	out := &Frame{}
	for _, c := range f.Columns {
		if !contains(cols, c) {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, r := range f.Rows {
		nr := Row{}
		for _, c := range out.Columns {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Rename maps column names. Unknown keys are ignored.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	for i, c := range f.Columns {
		if to, ok := mapping[c]; ok {
			f.Columns[i] = to
		}
	}
	for _, r := range f.Rows {
		for from, to := range mapping {
			if v, ok := r[from]; ok {
				delete(r, from)
				r[to] = v
			}
		}
	}
	return f
}

// Derive appends a computed column. fn returns the cell value and
// whether it is defined for the row; undefined cells stay empty.
func (f *Frame) Derive(name string, fn func(Row) (string, bool)) *Frame {
	if !f.hasColumn(name) {
		f.Columns = append(f.Columns, name)
	}
	for _, r := range f.Rows {
		if v, ok := fn(r); ok {
			r[name] = v
		}
	}
	return f
}

// SortBy orders rows by the given columns, comparing numerically where
// both cells parse as numbers and lexically otherwise.
func (f *Frame) SortBy(cols ...string) *Frame {
	sort.SliceStable(f.Rows, func(i, j int) bool {
		for _, c := range cols {
			a, b := f.Rows[i][c], f.Rows[j][c]
			if a == b {
				continue
			}
			af, aok := f.Rows[i].Float(c)
			bf, bok := f.Rows[j].Float(c)
			if aok && bok {
				return af < bf
			}
			return a < b
		}
		return false
	})
	return f
}

// Column returns all cells of one column, parsed as floats. Rows whose
// cell is missing or non-numeric are skipped.
func (f *Frame) Column(name string) []float64 {
	var out []float64
	for _, r := range f.Rows {
		if v, ok := r.Float(name); ok {
			out = append(out, v)
		}
	}
	return out
}

func joinKey(r Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = r[c]
	}
	return strings.Join(parts, "\x00")
}

func cloneRow(r Row) Row {
	nr := make(Row, len(r))
	for k, v := range r {
		nr[k] = v
	}
	return nr
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
