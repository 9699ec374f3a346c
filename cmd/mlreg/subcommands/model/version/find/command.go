package find

import (
	"context"
	"encoding/json"
	"log"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/utils/args"
	"github.com/opst/mlreg/pkg/utils/slices"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Latest bool                          `flag:"latest" help:"print only the version with the greatest number."`
	Stage  *args.Adapter[registry.Stage] `flag:"stage" metavar:"None|Staging|Production|Archived" help:"find versions only in the stage."`
}

const ARG_NAME = "NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Find versions of a registered model.",
		Flag{
			Stage: args.Parser(registry.ParseStage),
		},
		flarc.Args{
			{Name: ARG_NAME, Required: true, Help: "name of the registered model."},
		},
		common.NewTask(Task(RunFindVersion)),
		flarc.WithDescription(`
Find versions of a registered model, and print them as a JSON array, newest first.

With "--latest", only the newest version is printed as a JSON object.

Example
-------

	{{ .Command }} airbnb_rf_model --latest

	{{ .Command }} airbnb_rf_model --stage Production
`),
	)
}

func Task(
	find func(context.Context, rest.MLflowClient, string) ([]registry.ModelVersion, error),
) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		name := cl.Args()[ARG_NAME][0]

		mvs, err := find(ctx, client, name)
		if err != nil {
			return err
		}
		if flags.Stage.IsSet() {
			stage := flags.Stage.Value()
			mvs = slices.Filter(mvs, func(mv registry.ModelVersion) bool { return mv.CurrentStage == stage })
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		if !flags.Latest {
			return enc.Encode(mvs)
		}

		latest, ok := registry.Latest(mvs)
		if !ok {
			return models.ErrNoVersion
		}
		return enc.Encode(latest)
	}
}

func RunFindVersion(ctx context.Context, client rest.MLflowClient, name string) ([]registry.ModelVersion, error) {
	return client.SearchModelVersions(ctx, models.NameFilter(name))
}
