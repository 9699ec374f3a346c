package train

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/utils/args"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Data         string         `flag:"data" alias:"d" metavar:"CSV" help:"CSV file with a header row. Required."`
	Label        string         `flag:"label" alias:"l" metavar:"COLUMN" help:"column to be predicted."`
	NEstimators  int            `flag:"n-estimators" help:"number of trees."`
	MaxDepth     int            `flag:"max-depth" help:"max depth of trees. 0 means unbounded."`
	Grid         *args.Argslice `flag:"grid" metavar:"PARAM=V1,V2..." help:"hyperparameter candidates for grid search, like n_estimators=100,300. Repeatable."`
	CV           int            `flag:"cv" help:"number of folds of cross validation in grid search."`
	TestSize     string         `flag:"test-size" help:"ratio of the test partition, in (0, 1)."`
	Seed         int            `flag:"seed" help:"random seed of the split and the forest."`
	Experiment   string         `flag:"experiment" alias:"e" help:"experiment name. If empty, the one in mlregenv (or \"Default\") is used."`
	RunName      string         `flag:"run-name" help:"name of the run."`
	ArtifactPath string         `flag:"artifact-path" help:"path in the run artifacts where the model is logged."`
	Tag          *args.Tags     `flag:"tag" alias:"t" metavar:"KEY:VALUE..." help:"tags put on the run and the registered version. Repeatable."`
	Register     string         `flag:"register" metavar:"NAME" help:"register the model as a new version of NAME, and wait it gets READY."`
	Interval     time.Duration  `flag:"interval" help:"polling interval while waiting registration."`
	Timeout      time.Duration  `flag:"timeout" help:"max time to wait registration."`
	SaveDir      string         `flag:"save-dir" metavar:"DIR" help:"also write the model files into DIR. mlreg predict can load it."`
}

// Result is the output of train.
type Result struct {
	RunId    string                 `json:"run_id"`
	ModelURI string                 `json:"model_uri"`
	Params   map[string]string      `json:"params"`
	Metrics  map[string]float64     `json:"metrics"`
	Version  *registry.ModelVersion `json:"model_version,omitempty"`
}

func New() (flarc.Command, error) {
	defaults := forest.DefaultParams()
	return flarc.NewCommand(
		"Train a random forest regressor, and log it to the tracking server.",
		Flag{
			Label:        "price",
			NEstimators:  defaults.NEstimators,
			MaxDepth:     defaults.MaxDepth,
			Grid:         &args.Argslice{},
			CV:           3,
			TestSize:     strconv.FormatFloat(dataset.DefaultTestSize, 'f', -1, 64),
			Seed:         42,
			RunName:      "RF Model",
			ArtifactPath: models.DefaultArtifactPath,
			Tag:          &args.Tags{},
			Interval:     time.Second,
			Timeout:      time.Minute,
		},
		flarc.Args{},
		common.NewTask(Task(RunTrain)),
		flarc.WithDescription(`
Train a random forest regressor on a CSV table, and log it into a new run.

The table is split into train and test partitions. The forest is fitted on the
train partition, and metrics (mse, rmse, mae, r2) on the test partition are logged
with parameters. The model is logged under "--artifact-path" of the run.

When "--grid" is passed, hyperparameters are picked by k-fold cross validation
("--cv") on the train partition.

When "--register NAME" is passed, the model is registered as a new version of NAME,
and {{ .Command }} waits until the version gets READY.

Example
-------

	{{ .Command }} --data listings.csv --label price --n-estimators 100 --max-depth 5

	{{ .Command }} --data listings.csv --grid n_estimators=100,300 --grid max_depth=5,10 --register airbnb_rf_model
`),
	)
}

// Request is what to train, resolved from flags and mlregenv.
type Request struct {
	Data     string
	TestSize float64
	Spec     models.TrainSpec
	SaveDir  string

	Register string
	Interval time.Duration
	Timeout  time.Duration
}

func Task(
	train func(context.Context, *log.Logger, rest.MLflowClient, Request) (Result, error),
) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		req, err := BuildRequest(cl.Flags(), e)
		if err != nil {
			return err
		}

		result, err := train(ctx, logger, client, req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(result)
	}
}

// BuildRequest validates flags, and merges tags and the experiment from mlregenv.
func BuildRequest(flags Flag, e env.MLregEnv) (Request, error) {
	if flags.Data == "" {
		return Request{}, fmt.Errorf("%w: --data is required", flarc.ErrUsage)
	}
	if flags.Label == "" {
		return Request{}, fmt.Errorf("%w: --label should not be empty", flarc.ErrUsage)
	}
	testSize, err := strconv.ParseFloat(flags.TestSize, 64)
	if err != nil || testSize <= 0 || 1 <= testSize {
		return Request{}, fmt.Errorf("%w: --test-size should be in (0, 1): %s", flarc.ErrUsage, flags.TestSize)
	}
	if flags.Seed < 0 {
		return Request{}, fmt.Errorf("%w: --seed should not be negative", flarc.ErrUsage)
	}

	p := forest.DefaultParams()
	p.NEstimators = flags.NEstimators
	p.MaxDepth = flags.MaxDepth
	p.Seed = uint64(flags.Seed)
	if err := p.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %w", flarc.ErrUsage, err)
	}

	grid := forest.Grid{}
	if flags.Grid != nil {
		for _, g := range flags.Grid.Values() {
			if err := grid.Add(g); err != nil {
				return Request{}, fmt.Errorf("%w: --grid: %w", flarc.ErrUsage, err)
			}
		}
	}
	if len(grid) != 0 && flags.CV < 2 {
		return Request{}, fmt.Errorf("%w: --cv should be 2 or more", flarc.ErrUsage)
	}

	experiment := flags.Experiment
	if experiment == "" {
		experiment = e.ExperimentName()
	}

	tags := append([]apitags.Tag{}, e.Tags()...)
	if flags.Tag != nil {
		tags = append(tags, flags.Tag.Values()...)
	}

	return Request{
		Data:     flags.Data,
		TestSize: testSize,
		Spec: models.TrainSpec{
			Experiment:   experiment,
			RunName:      flags.RunName,
			ArtifactPath: flags.ArtifactPath,
			Label:        flags.Label,
			Tags:         tags,
			Params:       p,
			Grid:         grid,
			Folds:        flags.CV,
			ExampleRows:  3,
		},
		SaveDir:  flags.SaveDir,
		Register: flags.Register,
		Interval: flags.Interval,
		Timeout:  flags.Timeout,
	}, nil
}

// LoadSplit reads the CSV and splits it into train and test partitions.
func LoadSplit(path string, label string, testSize float64, seed uint64) (dataset.Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataset.Split{}, err
	}
	defer f.Close()

	table, err := dataset.LoadCSV(f)
	if err != nil {
		return dataset.Split{}, fmt.Errorf("%s: %w", path, err)
	}
	x, y, err := table.XY(label)
	if err != nil {
		return dataset.Split{}, fmt.Errorf("%s: %w", path, err)
	}
	return dataset.TrainTestSplit(x, y, testSize, seed)
}

func RunTrain(ctx context.Context, logger *log.Logger, client rest.MLflowClient, req Request) (Result, error) {
	split, err := LoadSplit(req.Data, req.Spec.Label, req.TestSize, req.Spec.Params.Seed)
	if err != nil {
		return Result{}, err
	}
	logger.Printf("training on %d samples (test: %d samples)", split.XTrain.Len(), split.XTest.Len())

	opts := []models.Option{models.WithProgress(logger.Writer())}
	if req.SaveDir != "" {
		opts = append(opts, models.WithLocalCopy(req.SaveDir))
	}
	trained, err := models.Train(ctx, client, split, req.Spec, opts...)
	if err != nil {
		return Result{}, err
	}
	logger.Printf("logged %s (mse: %g)", trained.ModelURI, trained.Metrics[models.MetricMSE])

	result := Result{
		RunId:    trained.Run.RunId,
		ModelURI: trained.ModelURI.String(),
		Params:   trained.Forest.Params.AsMap(),
		Metrics:  trained.Metrics,
	}
	if req.Register == "" {
		return result, nil
	}

	mv, err := RegisterAndWait(ctx, logger, client, result.ModelURI, req.Register, req.Spec.Tags, req.Interval, req.Timeout)
	if err != nil {
		return result, err
	}
	result.Version = &mv
	return result, nil
}

// RegisterAndWait registers the model and waits until the version gets READY within timeout.
func RegisterAndWait(
	ctx context.Context,
	logger *log.Logger,
	client rest.MLflowClient,
	uri string,
	name string,
	tags []apitags.Tag,
	interval time.Duration,
	timeout time.Duration,
) (registry.ModelVersion, error) {
	mv, err := models.Register(ctx, client, uri, name, tags)
	if err != nil {
		return registry.ModelVersion{}, err
	}
	logger.Printf("registered %s as version %s of %s (%s)", uri, mv.Version, mv.Name, mv.Status)

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return models.WaitUntilReady(wctx, client, mv.Name, mv.Version, retry.StaticBackoff(interval))
}
