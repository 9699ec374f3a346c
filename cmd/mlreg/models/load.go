package models

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/flavor"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/modeluri"
)

// Loaded is a model read from the tracking server, ready to predict.
type Loaded struct {
	URI modeluri.URI

	// artifact location where the model has been read from
	Source string

	// version which the URI has been resolved to. nil for runs:/ URIs.
	Version *registry.ModelVersion

	MLmodel *flavor.MLmodel
	Forest  *forest.Forest
}

// Load reads the model pointed by uri.
//
// uri should be runs:/<run_id>/<artifact_path> or models:/<name>/<version|stage|latest>.
// The model should have the go_forest flavor. Otherwise, it returns flavor.ErrNoFlavor.
func Load(ctx context.Context, client rest.MLflowClient, uri string, opts ...Option) (*Loaded, error) {
	u, err := modeluri.Parse(uri)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	loaded := &Loaded{URI: u}
	switch u.Scheme {
	case modeluri.Runs:
		run, err := client.GetRun(ctx, u.RunId)
		if err != nil {
			return nil, err
		}
		loaded.Source = strings.TrimSuffix(run.Info.ArtifactUri, "/") + "/" + u.ArtifactPath
	default:
		mv, err := Resolve(ctx, client, u)
		if err != nil {
			return nil, err
		}
		src, err := client.GetModelVersionDownloadUri(ctx, mv.Name, mv.Version)
		if err != nil {
			return nil, err
		}
		loaded.Version = &mv
		loaded.Source = src
	}

	var m *flavor.MLmodel
	if err := client.DownloadArtifact(ctx, loaded.Source, flavor.MLmodelFile, func(r io.Reader) error {
		_m, err := flavor.ReadMLmodel(r)
		m = _m
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	fl, err := m.GoForest()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}

	var f *forest.Forest
	if err := client.DownloadArtifact(ctx, loaded.Source, fl.ModelData, func(r io.Reader) error {
		buf := new(bytes.Buffer)
		bar := o.bar("downloading "+fl.ModelData+":", -1)
		bar.Start()
		_, err := io.Copy(buf, bar.NewProxyReader(r))
		bar.Finish()
		if err != nil {
			return err
		}
		_f, err := flavor.DecodeForest(buf)
		f = _f
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}

	loaded.MLmodel = m
	loaded.Forest = f
	return loaded, nil
}

// LoadDir reads a model saved on the local filesystem, like by `train --save-dir`.
func LoadDir(dir string) (*Loaded, error) {
	m, f, err := flavor.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return &Loaded{Source: dir, MLmodel: m, Forest: f}, nil
}

var ErrSchemaUnmatch = errors.New("input does not match the model signature")

// Predict predicts the label for each row of x.
//
// When the model has a signature, x should have every input column in it.
func (l *Loaded) Predict(x dataset.Frame) ([]float64, error) {
	if sig := l.MLmodel.Signature; sig != nil {
		enforced, err := sig.Enforce(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchemaUnmatch, err)
		}
		x = enforced
	}
	return l.Forest.Predict(x)
}

// Predictions is the response body of scoring, as MLflow's scoring server does.
type Predictions struct {
	Predictions []float64 `json:"predictions"`
}
