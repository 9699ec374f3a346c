package flavor

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/opst/mlreg/pkg/dataset"
)

// ColSpec is a column in a model signature.
type ColSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Signature describes model inputs and outputs.
//
// Both are JSON encoded column specs, as they appear in MLmodel.
type Signature struct {
	Inputs  string `yaml:"inputs" json:"inputs"`
	Outputs string `yaml:"outputs" json:"outputs"`
}

// InferSignature makes a signature from the features and the label name.
//
// Every column is "double".
func InferSignature(x dataset.Frame, label string) (*Signature, error) {
	specs := func(cols []string) (string, error) {
		cs := make([]ColSpec, len(cols))
		for i, c := range cols {
			cs[i] = ColSpec{Name: c, Type: "double"}
		}
		b, err := json.Marshal(cs)
		return string(b), err
	}

	in, err := specs(x.Columns)
	if err != nil {
		return nil, err
	}
	out, err := specs([]string{label})
	if err != nil {
		return nil, err
	}
	return &Signature{Inputs: in, Outputs: out}, nil
}

func (s *Signature) InputColumns() ([]ColSpec, error) {
	cs := []ColSpec{}
	if err := json.Unmarshal([]byte(s.Inputs), &cs); err != nil {
		return nil, fmt.Errorf("broken signature inputs: %w", err)
	}
	return cs, nil
}

// Enforce checks that x has every input column, and returns x with columns in signature order.
func (s *Signature) Enforce(x dataset.Frame) (dataset.Frame, error) {
	cs, err := s.InputColumns()
	if err != nil {
		return dataset.Frame{}, err
	}
	names := make([]string, len(cs))
	missing := []string{}
	for i, c := range cs {
		names[i] = c.Name
		if !slices.Contains(x.Columns, c.Name) {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) != 0 {
		return dataset.Frame{}, fmt.Errorf("%w: model requires %v", dataset.ErrNoColumn, missing)
	}
	return x.Reorder(names)
}
