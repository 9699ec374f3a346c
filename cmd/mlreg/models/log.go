package models

import (
	"bytes"
	"context"
	"path"

	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/flavor"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/modeluri"
)

// LogModel uploads the forest as artifacts of the run under artifactPath,
// and records the model to the run.
//
// It returns runs:/ URI of the logged model.
// With WithLocalCopy, the same files are written into the directory.
func LogModel(
	ctx context.Context,
	client rest.MLflowClient,
	run tracking.RunInfo,
	artifactPath string,
	f *forest.Forest,
	signature *flavor.Signature,
	example *dataset.Frame,
	opts ...Option,
) (modeluri.URI, error) {
	o := buildOptions(opts)
	uri := modeluri.RunsURI(run.RunId, artifactPath)

	m := flavor.New(uri.ArtifactPath, run.RunId, f.Params.AsMap())
	m.Signature = signature
	files, err := flavor.Pack(m, f, example)
	if err != nil {
		return modeluri.URI{}, err
	}

	if o.saveDir != "" {
		if err := flavor.Save(o.saveDir, files); err != nil {
			return modeluri.URI{}, err
		}
	}

	for _, file := range files {
		bar := o.bar("uploading "+file.Name+":", int64(len(file.Content)))
		bar.Start()
		err := client.UploadArtifact(
			ctx, run.ArtifactUri, path.Join(uri.ArtifactPath, file.Name),
			bar.NewProxyReader(bytes.NewReader(file.Content)),
		)
		bar.Finish()
		if err != nil {
			return modeluri.URI{}, err
		}
	}

	doc, err := m.JSON()
	if err != nil {
		return modeluri.URI{}, err
	}
	if err := client.LogModel(ctx, run.RunId, doc); err != nil {
		return modeluri.URI{}, err
	}
	return uri, nil
}
