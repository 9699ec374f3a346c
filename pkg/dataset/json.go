package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// splitOrient is the "split" orient of pandas' DataFrame.to_json:
//
//	{"columns": ["a", "b"], "index": [0, 1], "data": [[1, 2], [3, 4]]}
type splitOrient struct {
	Columns []string    `json:"columns"`
	Index   []int       `json:"index,omitempty"`
	Data    [][]float64 `json:"data"`
}

func (f Frame) MarshalJSON() ([]byte, error) {
	idx := make([]int, len(f.Rows))
	for i := range idx {
		idx[i] = i
	}
	data := f.Rows
	if data == nil {
		data = [][]float64{}
	}
	return json.Marshal(splitOrient{Columns: f.Columns, Index: idx, Data: data})
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	so := splitOrient{}
	if err := json.Unmarshal(b, &so); err != nil {
		return err
	}
	if so.Columns == nil {
		return errors.New(`required field missing: "columns"`)
	}
	fr := Frame{Columns: so.Columns, Rows: so.Data}
	if err := fr.Validate(); err != nil {
		return err
	}
	*f = fr
	return nil
}

// DecodeRequest reads a scoring request body.
//
// Both the bare "split" orient and the wrapped {"dataframe_split": {...}} form are accepted.
func DecodeRequest(b []byte) (Frame, error) {
	wrapped := struct {
		DataframeSplit *Frame `json:"dataframe_split"`
	}{}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if wrapped.DataframeSplit != nil {
		return *wrapped.DataframeSplit, nil
	}

	f := Frame{}
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return f, nil
}
