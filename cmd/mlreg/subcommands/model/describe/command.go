package describe

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

const (
	ARG_NAME        = "NAME"
	ARG_DESCRIPTION = "DESCRIPTION"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Set the description of a registered model.",
		struct{}{},
		flarc.Args{
			{Name: ARG_NAME, Required: true, Help: "name of the registered model."},
			{Name: ARG_DESCRIPTION, Required: true, Help: "new description. Pass \"\" to clear."},
		},
		common.NewTask(Task(RunDescribeModel)),
		flarc.WithDescription(`
Set the description of a registered model, and print the updated model.

Example
-------

	{{ .Command }} airbnb_rf_model "This model forecasts Airbnb housing list prices based on various listing inputs."
`),
	)
}

func Task(
	describe func(context.Context, rest.MLflowClient, string, string) (registry.RegisteredModel, error),
) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		rm, err := describe(ctx, client, cl.Args()[ARG_NAME][0], cl.Args()[ARG_DESCRIPTION][0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(rm)
	}
}

func RunDescribeModel(ctx context.Context, client rest.MLflowClient, name string, description string) (registry.RegisteredModel, error) {
	return client.UpdateRegisteredModel(ctx, name, description)
}
