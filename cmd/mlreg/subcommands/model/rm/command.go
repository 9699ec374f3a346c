package rm

import (
	"context"
	"log"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_NAME = "NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Delete a registered model with all its versions.",
		struct{}{},
		flarc.Args{
			{Name: ARG_NAME, Required: true, Help: "name of the registered model to be deleted."},
		},
		common.NewTask(Task(RunDeleteModel)),
		flarc.WithDescription(`
Delete a registered model with all its versions.

The registry may reject deleting a model which has versions in Staging or Production.
Archive them first with "model version stage NAME VERSION Archived".
`),
	)
}

func Task(
	remove func(context.Context, rest.MLflowClient, string) error,
) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		name := cl.Args()[ARG_NAME][0]
		if err := remove(ctx, client, name); err != nil {
			return err
		}
		logger.Printf("deleted registered model: %s", name)
		return nil
	}
}

func RunDeleteModel(ctx context.Context, client rest.MLflowClient, name string) error {
	return client.DeleteRegisteredModel(ctx, name)
}
