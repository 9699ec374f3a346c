// Package dataset holds numeric feature/label tables used for training and prediction.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrNoColumn     = errors.New("no such column")
	ErrEmptyCell    = errors.New("empty cell")
	ErrMalformed    = errors.New("malformed dataset")
	ErrShapeUnmatch = errors.New("shape unmatch")
)

// Table is a numeric table with named columns.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// LoadCSV reads a CSV with a header row. Every cell should be a number.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: column #%d has no name", ErrMalformed, i+1)
		}
		if slices.Contains(cols[:i], h) {
			return nil, fmt.Errorf("%w: column %q is duplicated", ErrMalformed, h)
		}
		cols[i] = h
	}

	t := &Table{Columns: cols}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)
		row := make([]float64, len(rec))
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				return nil, fmt.Errorf("%w: line %d, column %q", ErrEmptyCell, line, cols[i])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d, column %q: %q is not a number", ErrMalformed, line, cols[i], cell)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (t *Table) index(name string) (int, error) {
	i := slices.Index(t.Columns, name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	return i, nil
}

// XY splits the table into features (every column other than label) and the label vector.
func (t *Table) XY(label string) (Frame, []float64, error) {
	li, err := t.index(label)
	if err != nil {
		return Frame{}, nil, err
	}

	cols := slices.Delete(slices.Clone(t.Columns), li, li+1)
	rows := make([][]float64, len(t.Rows))
	y := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = slices.Delete(slices.Clone(r), li, li+1)
		y[i] = r[li]
	}
	return Frame{Columns: cols, Rows: rows}, y, nil
}

// Frame returns the whole table as a feature frame.
func (t *Table) Frame() Frame {
	return Frame{Columns: slices.Clone(t.Columns), Rows: t.Rows}
}
