package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/internal/versionarg"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/youta-t/flarc"
)

type Flag struct {
	ArchiveExisting bool `flag:"archive-existing" help:"move other versions in the stage to Archived."`
}

const ARG_STAGE = "STAGE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Transition a model version to a stage.",
		Flag{},
		flarc.Args{
			{Name: versionarg.ARG_NAME, Required: true, Help: "name of the registered model."},
			{Name: versionarg.ARG_VERSION, Required: true, Help: "version number."},
			{Name: ARG_STAGE, Required: true, Help: "None, Staging, Production or Archived (case insensitive)."},
		},
		common.NewTask(Task(RunTransition)),
		flarc.WithDescription(`
Request the registry to move a model version into a stage, and print the version.

Whether the transition is allowed is decided by the registry.

Example
-------

	{{ .Command }} airbnb_rf_model 1 Production

	{{ .Command }} airbnb_rf_model 2 Production --archive-existing
`),
	)
}

func Task(
	transition func(context.Context, *log.Logger, rest.MLflowClient, string, registry.Version, registry.Stage, bool) (registry.ModelVersion, error),
) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		name, version, err := versionarg.Parse(cl.Args())
		if err != nil {
			return err
		}
		stage, err := registry.ParseStage(cl.Args()[ARG_STAGE][0])
		if err != nil {
			return fmt.Errorf("%w: %s: %w", flarc.ErrUsage, ARG_STAGE, err)
		}

		mv, err := transition(ctx, logger, client, name, version, stage, cl.Flags().ArchiveExisting)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(mv)
	}
}

func RunTransition(
	ctx context.Context,
	logger *log.Logger,
	client rest.MLflowClient,
	name string,
	version registry.Version,
	stage registry.Stage,
	archiveExisting bool,
) (registry.ModelVersion, error) {
	mv, err := client.TransitionModelVersionStage(ctx, name, version, stage, archiveExisting)
	if err != nil {
		return registry.ModelVersion{}, err
	}
	logger.Printf("the current model stage of %s/%s is: '%s'", mv.Name, mv.Version, mv.CurrentStage)
	return mv, nil
}
