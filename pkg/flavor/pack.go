package flavor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/forest"
)

// File is a file in a model directory.
type File struct {
	Name    string
	Content []byte
}

// Pack encodes the model into files of a model directory.
//
// If example is not nil, it is saved as the input example.
func Pack(m *MLmodel, f *forest.Forest, example *dataset.Frame) ([]File, error) {
	fl, err := m.GoForest()
	if err != nil {
		return nil, err
	}

	files := []File{}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	files = append(files, File{Name: fl.ModelData, Content: data})

	if example != nil {
		ex, err := json.Marshal(example)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: InputExampleFile, Content: ex})
		m.SavedInputExampleInfo = &InputExampleInfo{
			ArtifactPath: InputExampleFile, Type: "dataframe", PandasOrient: "split",
		}
	}

	meta, err := m.YAML()
	if err != nil {
		return nil, err
	}
	files = append(files, File{Name: MLmodelFile, Content: meta})

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Save writes files into dir. dir is created if missing.
func Save(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// DecodeForest reads model data of go_forest flavor.
func DecodeForest(r io.Reader) (*forest.Forest, error) {
	f := new(forest.Forest)
	if err := json.NewDecoder(r).Decode(f); err != nil {
		return nil, fmt.Errorf("broken model data: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("broken model data: %w", err)
	}
	return f, nil
}

// Load reads a model directory on the local filesystem.
func Load(dir string) (*MLmodel, *forest.Forest, error) {
	mf, err := os.Open(filepath.Join(dir, MLmodelFile))
	if err != nil {
		return nil, nil, err
	}
	defer mf.Close()
	m, err := ReadMLmodel(mf)
	if err != nil {
		return nil, nil, err
	}
	fl, err := m.GoForest()
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, fl.ModelData))
	if err != nil {
		return nil, nil, err
	}
	f, err := DecodeForest(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return m, f, nil
}
