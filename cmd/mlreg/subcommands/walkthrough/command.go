package walkthrough

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/train"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/modeluri"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Data       string        `flag:"data" alias:"d" metavar:"CSV" help:"CSV file of listings. Required."`
	Label      string        `flag:"label" alias:"l" metavar:"COLUMN" help:"column to be predicted."`
	NamePrefix string        `flag:"name-prefix" help:"prefix of the registered model name. A random suffix is appended."`
	Keep       bool          `flag:"keep" help:"stop before deleting versions and the registered model."`
	Seed       int           `flag:"seed" help:"random seed of the split and forests."`
	Interval   time.Duration `flag:"interval" help:"polling interval while waiting registration."`
	Timeout    time.Duration `flag:"timeout" help:"max time to wait each registration."`
}

const (
	ModelDescription = "This model forecasts Airbnb housing list prices based on various listing inputs."

	FirstVersionDescription  = "This model version was built using go_forest, a random forest regressor written in Go."
	SecondVersionDescription = "This model version is a random forest containing 300 decision trees and a max depth of 10 that was trained in mlreg."

	// artifact path of the second model
	SecondArtifactPath = "go-forest-model"
)

// Plan is what the walkthrough does.
type Plan struct {
	Data       string
	Label      string
	Name       string
	Experiment string
	Tags       []apitags.Tag
	TestSize   float64

	// hyperparameters of the first and the second model
	First  forest.Params
	Second forest.Params

	Keep     bool
	Interval time.Duration
	Timeout  time.Duration
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Walk through the lifecycle of a registered model.",
		Flag{
			Label:      "price",
			NamePrefix: "airbnb_rf_model",
			Seed:       42,
			Interval:   time.Second,
			Timeout:    time.Minute,
		},
		flarc.Args{},
		common.NewTask(Task(Run)),
		flarc.WithDescription(`
Walk through the lifecycle of a registered model:

 1. train a random forest (100 trees, max depth 5) and log it,
 2. register it as version 1 of a new model, and wait it gets READY,
 3. describe the model and the version,
 4. move version 1 to Production, load it back by models:/NAME/1 and predict,
 5. train another forest (300 trees, max depth 10) as version 2,
 6. move version 2 to Staging, then to Production archiving version 1,
 7. delete version 1, archive version 2 and delete the registered model.

The registered model is named NAME_PREFIX_xxxxxx (6 random hex digits).
Pass --keep to leave the model in the registry.

Example
-------

	{{ .Command }} --data listings.csv
`),
	)
}

// UniqueName returns prefix followed by 6 random hex digits.
func UniqueName(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + id[:6]
}

// BuildPlan validates flags, and makes the plan with a unique model name.
func BuildPlan(flags Flag, e env.MLregEnv) (Plan, error) {
	if flags.Data == "" {
		return Plan{}, fmt.Errorf("%w: --data is required", flarc.ErrUsage)
	}
	if flags.Label == "" {
		return Plan{}, fmt.Errorf("%w: --label should not be empty", flarc.ErrUsage)
	}
	if flags.NamePrefix == "" {
		return Plan{}, fmt.Errorf("%w: --name-prefix should not be empty", flarc.ErrUsage)
	}
	if flags.Seed < 0 {
		return Plan{}, fmt.Errorf("%w: --seed should not be negative", flarc.ErrUsage)
	}
	if flags.Interval <= 0 || flags.Timeout <= 0 {
		return Plan{}, fmt.Errorf("%w: --interval and --timeout should be positive", flarc.ErrUsage)
	}

	first := forest.DefaultParams()
	first.NEstimators = 100
	first.MaxDepth = 5
	first.Seed = uint64(flags.Seed)

	second := forest.DefaultParams()
	second.NEstimators = 300
	second.MaxDepth = 10
	second.Seed = uint64(flags.Seed)

	return Plan{
		Data:       flags.Data,
		Label:      flags.Label,
		Name:       UniqueName(flags.NamePrefix),
		Experiment: e.ExperimentName(),
		Tags:       e.Tags(),
		TestSize:   0.25,
		First:      first,
		Second:     second,
		Keep:       flags.Keep,
		Interval:   flags.Interval,
		Timeout:    flags.Timeout,
	}, nil
}

func Task(
	run func(context.Context, *log.Logger, rest.MLflowClient, io.Writer, Plan) error,
) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		plan, err := BuildPlan(cl.Flags(), e)
		if err != nil {
			return err
		}
		return run(ctx, logger, client, cl.Stdout(), plan)
	}
}

// Run walks through the plan, printing what happens to out.
func Run(ctx context.Context, logger *log.Logger, client rest.MLflowClient, out io.Writer, plan Plan) error {
	split, err := train.LoadSplit(plan.Data, plan.Label, plan.TestSize, plan.First.Seed)
	if err != nil {
		return err
	}

	first, err := models.Train(ctx, client, split, models.TrainSpec{
		Experiment:   plan.Experiment,
		RunName:      "RF Model",
		ArtifactPath: models.DefaultArtifactPath,
		Label:        plan.Label,
		Tags:         plan.Tags,
		Params:       plan.First,
		ExampleRows:  3,
	}, models.WithProgress(logger.Writer()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run ID: %s\n", first.Run.RunId)
	fmt.Fprintf(out, "mse: %g\n", first.Metrics[models.MetricMSE])

	mv1, err := train.RegisterAndWait(
		ctx, logger, client, first.ModelURI.String(), plan.Name, plan.Tags, plan.Interval, plan.Timeout,
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Model Name: %s\n", mv1.Name)
	fmt.Fprintf(out, "Model Version: %s\n", mv1.Version)
	fmt.Fprintf(out, "Status: %s\n", mv1.Status)

	if _, err := client.UpdateRegisteredModel(ctx, plan.Name, ModelDescription); err != nil {
		return err
	}
	if _, err := client.UpdateModelVersion(ctx, plan.Name, mv1.Version, FirstVersionDescription); err != nil {
		return err
	}

	if err := transition(ctx, client, out, plan.Name, mv1.Version, registry.StageProduction, false); err != nil {
		return err
	}

	uri := modeluri.ModelsURI(plan.Name, mv1.Version)
	logger.Printf("Loading registered model version from URI: '%s'", uri)
	loaded, err := models.Load(ctx, client, uri.String(), models.WithProgress(logger.Writer()))
	if err != nil {
		return err
	}
	pred, err := loaded.Predict(split.XTest)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "predictions on %d test samples: %v\n", len(pred), pred[:min(5, len(pred))])

	second, err := models.Train(ctx, client, split, models.TrainSpec{
		Experiment:   plan.Experiment,
		RunName:      "RF Model",
		ArtifactPath: SecondArtifactPath,
		Label:        plan.Label,
		Tags:         plan.Tags,
		Params:       plan.Second,
		ExampleRows:  3,
	}, models.WithProgress(logger.Writer()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run ID: %s\n", second.Run.RunId)
	fmt.Fprintf(out, "mse: %g\n", second.Metrics[models.MetricMSE])

	if _, err := train.RegisterAndWait(
		ctx, logger, client, second.ModelURI.String(), plan.Name, plan.Tags, plan.Interval, plan.Timeout,
	); err != nil {
		return err
	}
	latest, err := models.LatestVersion(ctx, client, plan.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "New model version: %s\n", latest.Version)

	if _, err := client.UpdateModelVersion(ctx, plan.Name, latest.Version, SecondVersionDescription); err != nil {
		return err
	}
	if err := transition(ctx, client, out, plan.Name, latest.Version, registry.StageStaging, false); err != nil {
		return err
	}
	if err := transition(ctx, client, out, plan.Name, latest.Version, registry.StageProduction, true); err != nil {
		return err
	}

	if plan.Keep {
		logger.Printf("registered model %s is kept", plan.Name)
		return nil
	}

	if err := client.DeleteModelVersion(ctx, plan.Name, mv1.Version); err != nil {
		return err
	}
	logger.Printf("deleted %s version %s", plan.Name, mv1.Version)
	if err := transition(ctx, client, out, plan.Name, latest.Version, registry.StageArchived, false); err != nil {
		return err
	}
	if err := client.DeleteRegisteredModel(ctx, plan.Name); err != nil {
		return err
	}
	logger.Printf("deleted registered model %s", plan.Name)
	return nil
}

func transition(
	ctx context.Context, client rest.MLflowClient, out io.Writer,
	name string, version registry.Version, stage registry.Stage, archiveExisting bool,
) error {
	mv, err := client.TransitionModelVersionStage(ctx, name, version, stage, archiveExisting)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "The current model stage of version %s is: '%s'\n", mv.Version, mv.CurrentStage)
	return nil
}
