package register

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
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/utils/args"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Tag      *args.Tags    `flag:"tag" alias:"t" metavar:"KEY:VALUE..." help:"tags put on the new version. Repeatable."`
	NoWait   bool          `flag:"no-wait" help:"do not wait the version gets READY."`
	Interval time.Duration `flag:"interval" help:"polling interval while waiting."`
	Timeout  time.Duration `flag:"timeout" help:"max time to wait."`
}

const (
	ARG_URI  = "MODEL_URI"
	ARG_NAME = "NAME"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Register a logged model as a new version of a registered model.",
		Flag{
			Tag:      &args.Tags{},
			Interval: time.Second,
			Timeout:  time.Minute,
		},
		flarc.Args{
			{
				Name: ARG_URI, Required: true,
				Help: "model to be registered, like runs:/<run_id>/model or models:/<name>/<version>.",
			},
			{
				Name: ARG_NAME, Required: true,
				Help: "name of the registered model. It is created if missing.",
			},
		},
		common.NewTask(Task(RunRegister)),
		flarc.WithDescription(`
Register a logged model as a new version of a registered model, and print the version.

{{ .Command }} waits until the version gets READY, unless "--no-wait" is passed.

Example
-------

	{{ .Command }} runs:/0123456789abcdef/model airbnb_rf_model
`),
	)
}

func Task(
	register func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MLflowClient,
		uri string,
		name string,
		tags []apitags.Tag,
		wait retry.Backoff,
		timeout time.Duration,
	) (registry.ModelVersion, error),
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
		uri := cl.Args()[ARG_URI][0]
		name := cl.Args()[ARG_NAME][0]
		if name == "" {
			return fmt.Errorf("%w: %s should not be empty", flarc.ErrUsage, ARG_NAME)
		}

		tags := append([]apitags.Tag{}, e.Tags()...)
		tags = append(tags, flags.Tag.Values()...)

		var wait retry.Backoff
		if !flags.NoWait {
			wait = retry.StaticBackoff(flags.Interval)
		}

		mv, err := register(ctx, logger, client, uri, name, tags, wait, flags.Timeout)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(mv)
	}
}

// RunRegister registers the model. If wait is not nil, it waits the version gets READY within timeout.
func RunRegister(
	ctx context.Context,
	logger *log.Logger,
	client rest.MLflowClient,
	uri string,
	name string,
	tags []apitags.Tag,
	wait retry.Backoff,
	timeout time.Duration,
) (registry.ModelVersion, error) {
	mv, err := models.Register(ctx, client, uri, name, tags)
	if err != nil {
		return registry.ModelVersion{}, err
	}
	logger.Printf("registered %s as version %s of %s", uri, mv.Version, mv.Name)
	if wait == nil {
		return mv, nil
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return models.WaitUntilReady(wctx, client, mv.Name, mv.Version, wait)
}
