// Package flavor reads and writes a model in the MLmodel directory format.
//
// A model directory has:
//
//	MLmodel              metadata (YAML)
//	model.json           fitted forest
//	input_example.json   a few input rows, in pandas "split" orient (optional)
//
// The forest is registered under the "go_forest" flavor.
package flavor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opst/mlreg/pkg/buildtime"
	"gopkg.in/yaml.v3"
)

const (
	MLmodelFile      = "MLmodel"
	ModelDataFile    = "model.json"
	InputExampleFile = "input_example.json"

	FlavorName = "go_forest"

	timeFormat = "2006-01-02 15:04:05.000000"
)

var ErrNoFlavor = errors.New("model has no go_forest flavor")

// MLmodel is the metadata of a stored model.
type MLmodel struct {
	ArtifactPath          string            `yaml:"artifact_path,omitempty" json:"artifact_path,omitempty"`
	RunId                 string            `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	UTCTimeCreated        string            `yaml:"utc_time_created" json:"utc_time_created"`
	ModelUUID             string            `yaml:"model_uuid" json:"model_uuid"`
	Flavors               Flavors           `yaml:"flavors" json:"flavors"`
	Signature             *Signature        `yaml:"signature,omitempty" json:"signature,omitempty"`
	SavedInputExampleInfo *InputExampleInfo `yaml:"saved_input_example_info,omitempty" json:"saved_input_example_info,omitempty"`
}

type Flavors struct {
	GoForest *GoForest `yaml:"go_forest,omitempty" json:"go_forest,omitempty"`

	// flavors written by other tools. They are kept as they are.
	Others map[string]any `yaml:",inline" json:"-"`
}

type GoForest struct {
	ModelData     string            `yaml:"model_data" json:"model_data"`
	FormatVersion int               `yaml:"format_version" json:"format_version"`
	CodeVersion   string            `yaml:"code_version,omitempty" json:"code_version,omitempty"`
	Params        map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

type InputExampleInfo struct {
	ArtifactPath string `yaml:"artifact_path" json:"artifact_path"`
	Type         string `yaml:"type" json:"type"`
	PandasOrient string `yaml:"pandas_orient" json:"pandas_orient"`
}

// New creates metadata for a go_forest model. The creation time is now.
func New(artifactPath, runId string, params map[string]string) *MLmodel {
	return &MLmodel{
		ArtifactPath:   artifactPath,
		RunId:          runId,
		UTCTimeCreated: time.Now().UTC().Format(timeFormat),
		ModelUUID:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		Flavors: Flavors{
			GoForest: &GoForest{
				ModelData:     ModelDataFile,
				FormatVersion: 1,
				CodeVersion:   buildtime.VERSION(),
				Params:        params,
			},
		},
	}
}

// ReadMLmodel parses an MLmodel document.
func ReadMLmodel(r io.Reader) (*MLmodel, error) {
	m := new(MLmodel)
	if err := yaml.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("broken %s: %w", MLmodelFile, err)
	}
	return m, nil
}

// GoForest returns the go_forest flavor, or ErrNoFlavor.
func (m *MLmodel) GoForest() (*GoForest, error) {
	if m.Flavors.GoForest == nil {
		names := make([]string, 0, len(m.Flavors.Others))
		for k := range m.Flavors.Others {
			names = append(names, k)
		}
		return nil, fmt.Errorf("%w (found: %s)", ErrNoFlavor, strings.Join(names, ", "))
	}
	if m.Flavors.GoForest.ModelData == "" {
		return nil, fmt.Errorf("%w: model_data is empty", ErrNoFlavor)
	}
	return m.Flavors.GoForest, nil
}

func (m *MLmodel) YAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// JSON encodes the metadata as the tracking server records with a logged model.
func (m *MLmodel) JSON() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
