package dataset

import (
	"fmt"
	"slices"
)

// Frame is a feature matrix: Rows[i][j] is the value of Columns[j] in the i-th sample.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

func (f Frame) Len() int {
	return len(f.Rows)
}

// Head returns the first n rows. If the frame is shorter, the whole frame is returned.
func (f Frame) Head(n int) Frame {
	n = min(max(n, 0), len(f.Rows))
	return Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Column returns a copy of the values of the named column.
func (f Frame) Column(name string) ([]float64, error) {
	j := slices.Index(f.Columns, name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	col := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		col[i] = r[j]
	}
	return col, nil
}

// Select returns rows at the indexes, in that order.
func (f Frame) Select(idx []int) Frame {
	rows := make([][]float64, len(idx))
	for i, n := range idx {
		rows[i] = f.Rows[n]
	}
	return Frame{Columns: f.Columns, Rows: rows}
}

// Reorder returns a frame whose columns are ordered as cols.
//
// Every column in cols should be in f. Columns of f not in cols are dropped.
func (f Frame) Reorder(cols []string) (Frame, error) {
	if slices.Equal(f.Columns, cols) {
		return f, nil
	}
	idx := make([]int, len(cols))
	for j, c := range cols {
		k := slices.Index(f.Columns, c)
		if k < 0 {
			return Frame{}, fmt.Errorf("%w: %s", ErrNoColumn, c)
		}
		idx[j] = k
	}
	rows := make([][]float64, len(f.Rows))
	for i, r := range f.Rows {
		row := make([]float64, len(idx))
		for j, k := range idx {
			row[j] = r[k]
		}
		rows[i] = row
	}
	return Frame{Columns: slices.Clone(cols), Rows: rows}, nil
}

// Validate checks that every row has a value for each column.
func (f Frame) Validate() error {
	for i, r := range f.Rows {
		if len(r) != len(f.Columns) {
			return fmt.Errorf("%w: row #%d has %d values for %d columns", ErrShapeUnmatch, i, len(r), len(f.Columns))
		}
	}
	return nil
}

func selectFloats(v []float64, idx []int) []float64 {
	ret := make([]float64, len(idx))
	for i, n := range idx {
		ret[i] = v[n]
	}
	return ret
}
