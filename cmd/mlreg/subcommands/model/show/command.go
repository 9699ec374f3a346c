package show

import (
	"context"
	"encoding/json"
	"log"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/youta-t/flarc"
)

const ARG_NAME = "NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show a registered model.",
		struct{}{},
		flarc.Args{
			{Name: ARG_NAME, Required: true, Help: "name of the registered model."},
		},
		common.NewTask(Task(RunShowModel)),
	)
}

func Task(
	show func(context.Context, rest.MLflowClient, string) (registry.RegisteredModel, error),
) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		rm, err := show(ctx, client, cl.Args()[ARG_NAME][0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(rm)
	}
}

func RunShowModel(ctx context.Context, client rest.MLflowClient, name string) (registry.RegisteredModel, error) {
	return client.GetRegisteredModel(ctx, name)
}
