package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/opst/mlreg/cmd/mlreg/rest"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/flavor"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/modeluri"
)

// Metric names logged by Train.
const (
	MetricMSE  = "mse"
	MetricRMSE = "rmse"
	MetricMAE  = "mae"
	MetricR2   = "r2"

	// mean cross validation MSE of each grid candidate, logged with step = candidate index
	MetricCVMSE = "cv_mse"
)

// DefaultArtifactPath is where Train logs the model in the run.
const DefaultArtifactPath = "model"

// TrainSpec is how to train and log a model.
type TrainSpec struct {
	Experiment   string
	RunName      string
	ArtifactPath string
	Label        string
	Tags         []apitags.Tag

	Params forest.Params

	// If not empty, hyperparameters are picked from the grid by Folds-fold cross validation on the train partition.
	Grid  forest.Grid
	Folds int

	// number of training rows saved as input example
	ExampleRows int
}

// Trained is a model fitted and logged by Train.
type Trained struct {
	Run      tracking.RunInfo
	ModelURI modeluri.URI
	Forest   *forest.Forest
	Metrics  map[string]float64
}

// Train fits a forest on split, evaluates it on the test partition and logs the model into a new run.
//
// Metrics which are not finite are not logged.
//
// The run is terminated as FINISHED on success, or FAILED on error after it is created.
func Train(ctx context.Context, client rest.MLflowClient, split dataset.Split, spec TrainSpec, opts ...Option) (Trained, error) {
	if spec.ArtifactPath == "" {
		spec.ArtifactPath = DefaultArtifactPath
	}

	params := spec.Params
	var search *forest.SearchResult
	if len(spec.Grid) != 0 {
		sr, err := forest.GridSearch(ctx, split.XTrain, split.YTrain, spec.Params, spec.Grid, spec.Folds, spec.Params.Seed)
		if err != nil {
			return Trained{}, err
		}
		search = &sr
		params = sr.Best.Params
	}

	f, err := forest.Fit(ctx, split.XTrain, split.YTrain, params)
	if err != nil {
		return Trained{}, err
	}
	metrics, err := evaluate(f, split)
	if err != nil {
		return Trained{}, err
	}

	expId, err := client.EnsureExperiment(ctx, spec.Experiment)
	if err != nil {
		return Trained{}, err
	}
	run, err := client.CreateRun(ctx, expId, spec.RunName, spec.Tags)
	if err != nil {
		return Trained{}, err
	}

	uri, err := logRun(ctx, client, run.Info, f, params, metrics, search, split, spec, opts...)
	if err != nil {
		if eerr := client.EndRun(ctx, run.Info.RunId, tracking.Failed); eerr != nil {
			err = errors.Join(err, eerr)
		}
		return Trained{}, err
	}
	if err := client.EndRun(ctx, run.Info.RunId, tracking.Finished); err != nil {
		return Trained{}, err
	}

	return Trained{Run: run.Info, ModelURI: uri, Forest: f, Metrics: metrics}, nil
}

func evaluate(f *forest.Forest, split dataset.Split) (map[string]float64, error) {
	pred, err := f.Predict(split.XTest)
	if err != nil {
		return nil, err
	}
	metrics := map[string]float64{}
	for name, m := range map[string]func(y, pred []float64) (float64, error){
		MetricMSE:  forest.MSE,
		MetricRMSE: forest.RMSE,
		MetricMAE:  forest.MAE,
		MetricR2:   forest.R2,
	} {
		v, err := m(split.YTest, pred)
		if err != nil {
			return nil, err
		}
		// r2 is NaN when test labels are constant.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		metrics[name] = v
	}
	return metrics, nil
}

func logRun(
	ctx context.Context,
	client rest.MLflowClient,
	run tracking.RunInfo,
	f *forest.Forest,
	params forest.Params,
	metrics map[string]float64,
	search *forest.SearchResult,
	split dataset.Split,
	spec TrainSpec,
	opts ...Option,
) (modeluri.URI, error) {
	pm := params.AsMap()
	ps := make([]tracking.Param, 0, len(pm))
	for k, v := range pm {
		ps = append(ps, tracking.Param{Key: k, Value: v})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Key < ps[j].Key })

	ms := make([]tracking.Metric, 0, len(metrics))
	for k, v := range metrics {
		ms = append(ms, tracking.Metric{Key: k, Value: v})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Key < ms[j].Key })
	if search != nil {
		for i, s := range search.Scores {
			ms = append(ms, tracking.Metric{Key: MetricCVMSE, Value: s.MSE, Step: int64(i)})
		}
	}

	if err := client.LogBatch(ctx, run.RunId, ms, ps, nil); err != nil {
		return modeluri.URI{}, err
	}

	signature, err := flavor.InferSignature(split.XTrain, spec.Label)
	if err != nil {
		return modeluri.URI{}, err
	}
	var example *dataset.Frame
	if 0 < spec.ExampleRows {
		head := split.XTrain.Head(spec.ExampleRows)
		example = &head
	}

	uri, err := LogModel(ctx, client, run, spec.ArtifactPath, f, signature, example, opts...)
	if err != nil {
		return modeluri.URI{}, fmt.Errorf("failed to log model: %w", err)
	}
	return uri, nil
}
