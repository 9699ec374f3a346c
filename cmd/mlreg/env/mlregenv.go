// Package env reads mlregenv, the per-project defaults of the command line.
//
//	experiment: airbnb-price
//	tag:
//	  - "team:pricing"
//	  - key: dataset
//	    value: sf-listings
package env

import (
	"errors"
	"fmt"
	"os"

	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"gopkg.in/yaml.v3"
)

// DefaultExperiment is the experiment used when neither flags nor mlregenv specify one.
const DefaultExperiment = "Default"

type MLregEnv struct {
	// experiment which runs are recorded in
	Experiment string `yaml:"experiment,omitempty"`

	// tags put on runs and model versions
	Tag []apitags.Tag `yaml:"tag,omitempty"`
}

func (e *MLregEnv) Tags() []apitags.Tag {
	return e.Tag
}

// ExperimentName returns the experiment in env, or DefaultExperiment.
func (e *MLregEnv) ExperimentName() string {
	if e.Experiment == "" {
		return DefaultExperiment
	}
	return e.Experiment
}

// LoadMLregEnv reads mlregenv at path. A missing file gives an empty env.
//
// System tags (mlflow.*) are rejected.
func LoadMLregEnv(path string) (*MLregEnv, error) {
	e := &MLregEnv{}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(content, e); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, t := range e.Tag {
		if ut := new(apitags.UserTag); !t.AsUserTag(ut) {
			return nil, fmt.Errorf("%s: %w: %s", path, apitags.ErrReservedKey, t.Key)
		}
	}
	return e, nil
}
