package show

import (
	"context"
	"encoding/json"
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
		"Show a model version.",
		struct{}{},
		versionarg.Args(),
		common.NewTask(Task(RunShowVersion)),
		flarc.WithDescription(`
Show a model version, including its status and stage.

Example
-------

	{{ .Command }} airbnb_rf_model 1
`),
	)
}

func Task(
	show func(context.Context, rest.MLflowClient, string, registry.Version) (registry.ModelVersion, error),
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
		mv, err := show(ctx, client, name, version)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(mv)
	}
}

func RunShowVersion(ctx context.Context, client rest.MLflowClient, name string, version registry.Version) (registry.ModelVersion, error) {
	return client.GetModelVersion(ctx, name, version)
}
