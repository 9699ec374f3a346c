package describe

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

const ARG_DESCRIPTION = "DESCRIPTION"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Set the description of a model version.",
		struct{}{},
		flarc.Args{
			{Name: versionarg.ARG_NAME, Required: true, Help: "name of the registered model."},
			{Name: versionarg.ARG_VERSION, Required: true, Help: "version number."},
			{Name: ARG_DESCRIPTION, Required: true, Help: "new description. Pass \"\" to clear."},
		},
		common.NewTask(Task(RunDescribeVersion)),
	)
}

func Task(
	describe func(context.Context, rest.MLflowClient, string, registry.Version, string) (registry.ModelVersion, error),
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
		mv, err := describe(ctx, client, name, version, cl.Args()[ARG_DESCRIPTION][0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(mv)
	}
}

func RunDescribeVersion(ctx context.Context, client rest.MLflowClient, name string, version registry.Version, description string) (registry.ModelVersion, error) {
	return client.UpdateModelVersion(ctx, name, version, description)
}
