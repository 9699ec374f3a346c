package wait

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/internal/versionarg"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Interval time.Duration `flag:"interval" help:"polling interval."`
	Timeout  time.Duration `flag:"timeout" help:"max time to wait. 0 means no limit."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Wait until a model version gets READY.",
		Flag{
			Interval: time.Second,
			Timeout:  time.Minute,
		},
		versionarg.Args(),
		common.NewTask(Task(RunWait)),
		flarc.WithDescription(`
Wait until registration of a model version completes, and print the version.

It fails when the registration has failed, or it does not complete in "--timeout".
`),
	)
}

func Task(
	wait func(context.Context, rest.MLflowClient, string, registry.Version, retry.Backoff) (registry.ModelVersion, error),
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
		if flags.Interval <= 0 {
			return fmt.Errorf("%w: --interval should be positive", flarc.ErrUsage)
		}
		name, version, err := versionarg.Parse(cl.Args())
		if err != nil {
			return err
		}

		if 0 < flags.Timeout {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flags.Timeout)
			defer cancel()
		}

		mv, err := wait(ctx, client, name, version, retry.StaticBackoff(flags.Interval))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(mv)
	}
}

func RunWait(ctx context.Context, client rest.MLflowClient, name string, version registry.Version, backoff retry.Backoff) (registry.ModelVersion, error) {
	return models.WaitUntilReady(ctx, client, name, version, backoff)
}
