package rm

import (
	"context"
	"log"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/internal/versionarg"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Delete a model version.",
		struct{}{},
		versionarg.Args(),
		common.NewTask(Task(RunDeleteVersion)),
		flarc.WithDescription(`
Delete a model version.

The registry may reject deleting a version in Staging or Production.
Archive it first with "model version stage NAME VERSION Archived".
`),
	)
}

func Task(
	remove func(context.Context, rest.MLflowClient, string, registry.Version) error,
) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		name, version, err := versionarg.Parse(cl.Args())
		if err != nil {
			return err
		}
		if err := remove(ctx, client, name, version); err != nil {
			return err
		}
		logger.Printf("deleted version %s of %s", version, name)
		return nil
	}
}

func RunDeleteVersion(ctx context.Context, client rest.MLflowClient, name string, version registry.Version) error {
	return client.DeleteModelVersion(ctx, name, version)
}
